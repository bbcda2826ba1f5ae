package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/refresh"
)

// Stream names
const (
	StreamImports   = "almanac.imports"
	StreamIdentity  = "almanac.identity"
	StreamRefresh   = "almanac.refresh"
	StreamStandings = "almanac.standings"
)

// Broadcaster fans messages out to live clients. The websocket hub
// implements it.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Message is the envelope sent to live clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// RedisPublisher publishes almanac events to Redis streams and, when a
// broadcaster is attached, to live clients.
type RedisPublisher struct {
	client  *redis.Client
	maxLen  int64
	timeout time.Duration
	live    Broadcaster
	log     *logrus.Entry
}

// NewRedisPublisher creates a publisher on an existing client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		maxLen:  10000,
		timeout: 5 * time.Second,
		log:     logrus.WithField("component", "publisher"),
	}
}

// WithBroadcaster attaches live fan-out
func (p *RedisPublisher) WithBroadcaster(b Broadcaster) *RedisPublisher {
	p.live = b
	return p
}

// Publish appends one event to stream and broadcasts it.
func (p *RedisPublisher) Publish(ctx context.Context, stream, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	now := time.Now().Unix()

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      eventType,
			"data":      string(data),
			"timestamp": now,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", stream, err)
	}

	if p.live != nil {
		msg, err := json.Marshal(Message{Type: eventType, Data: json.RawMessage(data), Timestamp: now})
		if err == nil {
			p.live.Broadcast(msg)
		}
	}
	return nil
}

// PublishImport announces a finished import or re-resolution. Runs that
// left names unresolved are also announced on the identity stream.
func (p *RedisPublisher) PublishImport(ctx context.Context, summary *importer.Summary) error {
	if err := p.Publish(ctx, StreamImports, string(summary.Operation)+"_complete", summary); err != nil {
		return err
	}
	if summary.Unresolved == 0 && summary.Ambiguous == 0 {
		return nil
	}
	return p.Publish(ctx, StreamIdentity, "identity_review", map[string]interface{}{
		"run_id":     summary.RunID,
		"season":     summary.Season,
		"unresolved": summary.Unresolved,
		"ambiguous":  summary.Ambiguous,
	})
}

// PublishRefresh forwards a refresh job event
func (p *RedisPublisher) PublishRefresh(ctx context.Context, ev refresh.Event) error {
	return p.Publish(ctx, StreamRefresh, "refresh_"+ev.Type, ev)
}

// PublishStandings announces recomputed standings
func (p *RedisPublisher) PublishStandings(ctx context.Context, standings interface{}) error {
	return p.Publish(ctx, StreamStandings, "standings_updated", standings)
}

// OnImportComplete implements importer.Listener
func (p *RedisPublisher) OnImportComplete(summary *importer.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.PublishImport(ctx, summary); err != nil {
		p.log.WithError(err).Warn("⚠️  failed to publish import event")
	}
}

// OnRefreshEvent implements refresh.Listener
func (p *RedisPublisher) OnRefreshEvent(ev refresh.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.PublishRefresh(ctx, ev); err != nil {
		p.log.WithError(err).Warn("⚠️  failed to publish refresh event")
	}
}
