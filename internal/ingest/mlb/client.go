package mlb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// BaseURL is the public MLB Stats API
	BaseURL = "https://statsapi.mlb.com/api/v1"

	dateLayout = "2006-01-02"
)

// Cache stores raw provider responses. A Get error is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Client handles MLB Stats API requests
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	log        *logrus.Entry
}

// New creates a client for baseURL (BaseURL when empty).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logrus.WithField("component", "mlb-client"),
	}
}

// WithCache makes the client read and write responses through cache.
func (c *Client) WithCache(cache Cache, ttl time.Duration) *Client {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

// FetchStatLine returns a player's hitting or pitching totals for the
// inclusive date range. A nil line with a nil error means the provider has
// no stats for that range.
func (c *Client) FetchStatLine(ctx context.Context, playerID string, group Group, start, end time.Time) (*StatLine, error) {
	q := url.Values{}
	q.Set("stats", "byDateRange")
	q.Set("group", string(group))
	q.Set("startDate", start.Format(dateLayout))
	q.Set("endDate", end.Format(dateLayout))

	data, err := c.fetch(ctx, fmt.Sprintf("/people/%s/stats?%s", url.PathEscape(playerID), q.Encode()))
	if err != nil {
		return nil, err
	}

	line, ok := ParseStatLine(data, group)
	if !ok {
		return nil, nil
	}
	return line, nil
}

// FetchCurrentTeam returns the player's MLB team as of a date, or "" when
// the provider does not report one.
func (c *Client) FetchCurrentTeam(ctx context.Context, playerID string, asOf time.Time) (string, error) {
	q := url.Values{}
	q.Set("hydrate", "currentTeam")
	q.Set("date", asOf.Format(dateLayout))

	data, err := c.fetch(ctx, fmt.Sprintf("/people/%s?%s", url.PathEscape(playerID), q.Encode()))
	if err != nil {
		return "", err
	}
	return ParseCurrentTeam(data), nil
}

// FetchPerson returns the provider's canonical record for a player id.
func (c *Client) FetchPerson(ctx context.Context, playerID string) (*Person, error) {
	data, err := c.fetch(ctx, fmt.Sprintf("/people/%s", url.PathEscape(playerID)))
	if err != nil {
		return nil, err
	}
	person, ok := ParsePerson(data)
	if !ok {
		return nil, fmt.Errorf("player %s not found", playerID)
	}
	return person, nil
}

func (c *Client) fetch(ctx context.Context, path string) (map[string]interface{}, error) {
	key := "mlb:" + path
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
			var result map[string]interface{}
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, snippet(body))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w (body: %s)", err, snippet(body))
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, string(body), c.cacheTTL); err != nil {
			c.log.WithError(err).Warn("⚠️  cache write failed")
		}
	}
	return result, nil
}

func snippet(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
