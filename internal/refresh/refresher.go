package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fortuna/almanac/internal/ingest/mlb"
)

// Provider is the external stats source.
type Provider interface {
	FetchStatLine(ctx context.Context, playerID string, group mlb.Group, start, end time.Time) (*mlb.StatLine, error)
	FetchCurrentTeam(ctx context.Context, playerID string, asOf time.Time) (string, error)
}

// Config is the politeness policy toward the provider.
type Config struct {
	// Concurrency caps in-flight players.
	Concurrency int
	// MinInterval is the minimum spacing between provider requests.
	MinInterval time.Duration
	// CallTimeout bounds each provider request.
	CallTimeout time.Duration
}

// DefaultConfig is one player at a time, 50ms apart.
func DefaultConfig() Config {
	return Config{Concurrency: 1, MinInterval: 50 * time.Millisecond, CallTimeout: 10 * time.Second}
}

// Target is one identity to refresh.
type Target struct {
	ExternalID string
	IsPitcher  bool
}

// Delta is the provider's period total for one player. MLBTeam is "" when the
// provider reported no team.
type Delta struct {
	ExternalID string
	Line       *mlb.StatLine
	MLBTeam    string
}

// Refresher fetches date-ranged stats for many players under a rate limit.
type Refresher struct {
	provider Provider
	cfg      Config
	limiter  *rate.Limiter
	log      *logrus.Entry
}

// NewRefresher creates a refresher. Zero config fields take the defaults;
// a negative MinInterval disables spacing.
func NewRefresher(provider Provider, cfg Config) *Refresher {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Refresher{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		log:      logrus.WithField("component", "refresher"),
	}
}

// Refresh fetches stats for every target with an external id over
// [start, end]. A player whose call fails, times out or returns nothing is
// logged and left out of the result. When ctx is cancelled no new players are
// started and the partial result is returned with ctx.Err().
func (r *Refresher) Refresh(ctx context.Context, targets []Target, start, end time.Time) (map[string]Delta, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]Delta, len(targets))
		seen    = make(map[string]bool, len(targets))
		g       errgroup.Group
	)
	g.SetLimit(r.cfg.Concurrency)

	for _, t := range targets {
		if t.ExternalID == "" || seen[t.ExternalID] {
			continue
		}
		seen[t.ExternalID] = true

		if ctx.Err() != nil {
			break
		}

		t := t
		g.Go(func() error {
			delta, ok := r.refreshOne(ctx, t, start, end)
			if ok {
				mu.Lock()
				results[t.ExternalID] = delta
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	r.log.WithFields(logrus.Fields{
		"players":   len(seen),
		"refreshed": len(results),
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
	}).Info("✓ Refresh pass complete")

	return results, ctx.Err()
}

func (r *Refresher) refreshOne(ctx context.Context, t Target, start, end time.Time) (Delta, bool) {
	entry := r.log.WithFields(logrus.Fields{"player": t.ExternalID, "pitcher": t.IsPitcher})

	if err := r.limiter.Wait(ctx); err != nil {
		return Delta{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	line, err := r.provider.FetchStatLine(callCtx, t.ExternalID, mlb.GroupFor(t.IsPitcher), start, end)
	cancel()
	if err != nil {
		entry.WithError(err).Warn("⚠️  stat fetch failed, skipping player")
		return Delta{}, false
	}
	if line == nil {
		entry.Debug("no stats in range, skipping player")
		return Delta{}, false
	}

	delta := Delta{ExternalID: t.ExternalID, Line: line}

	if err := r.limiter.Wait(ctx); err != nil {
		return delta, true
	}
	callCtx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
	team, err := r.provider.FetchCurrentTeam(callCtx, t.ExternalID, start)
	cancel()
	if err != nil {
		entry.WithError(err).Debug("current team lookup failed")
	}
	delta.MLBTeam = team
	return delta, true
}
