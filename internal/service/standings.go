package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/refresh"
	"github.com/fortuna/almanac/internal/roto"
	"github.com/fortuna/almanac/internal/store"
)

// PeriodReader reads periods. *repository.SeasonRepository implements it.
type PeriodReader interface {
	GetPeriod(ctx context.Context, periodID int) (*store.Period, error)
	ListPeriods(ctx context.Context, seasonYear int) ([]*store.Period, error)
}

// StatsReader reads a period's rows. *repository.StatsRepository implements it.
type StatsReader interface {
	ListByPeriod(ctx context.Context, periodID int) ([]store.PlayerPeriodStat, error)
}

// Cache stores computed standings. *cache.RedisCache implements it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// StandingsPublisher announces recomputed standings
type StandingsPublisher interface {
	PublishStandings(ctx context.Context, standings interface{}) error
}

// PeriodStandings is a period leaderboard
type PeriodStandings struct {
	Period     *store.Period       `json:"period"`
	TieMode    roto.TieMode        `json:"tie_mode"`
	Categories []roto.Category     `json:"categories"`
	Rows       []roto.StandingsRow `json:"rows"`
	ComputedAt time.Time           `json:"computed_at"`
}

// SeasonStandings sums period totals over a season's scoring periods
type SeasonStandings struct {
	Season     int              `json:"season"`
	TieMode    roto.TieMode     `json:"tie_mode"`
	PeriodIDs  []int            `json:"period_ids"`
	Rows       []roto.SeasonRow `json:"rows"`
	ComputedAt time.Time        `json:"computed_at"`
}

// StandingsService computes leaderboards on demand and caches them until
// the underlying rows change.
type StandingsService struct {
	periods   PeriodReader
	stats     StatsReader
	calc      *roto.Calculator
	cache     Cache
	ttl       time.Duration
	publisher StandingsPublisher
	log       *logrus.Entry
}

// NewStandingsService creates a standings service. cache may be nil.
func NewStandingsService(periods PeriodReader, stats StatsReader, calc *roto.Calculator, cache Cache, ttl time.Duration) *StandingsService {
	return &StandingsService{
		periods: periods,
		stats:   stats,
		calc:    calc,
		cache:   cache,
		ttl:     ttl,
		log:     logrus.WithField("component", "standings"),
	}
}

// WithPublisher announces standings recomputed after a refresh
func (s *StandingsService) WithPublisher(p StandingsPublisher) *StandingsService {
	s.publisher = p
	return s
}

func (s *StandingsService) calculator(tie roto.TieMode) *roto.Calculator {
	if tie == "" || tie == s.calc.TieMode() {
		return s.calc
	}
	return s.calc.WithTieMode(tie)
}

func periodKey(periodID int, tie roto.TieMode) string {
	return fmt.Sprintf("standings:period:%d:%s", periodID, tie)
}

func seasonKey(year int, tie roto.TieMode) string {
	return fmt.Sprintf("standings:season:%d:%s", year, tie)
}

// PeriodStandings returns a period's leaderboard. An empty tie uses the
// configured policy.
func (s *StandingsService) PeriodStandings(ctx context.Context, periodID int, tie roto.TieMode) (*PeriodStandings, error) {
	calc := s.calculator(tie)
	key := periodKey(periodID, calc.TieMode())

	var cached PeriodStandings
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	period, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("fetching period: %w", err)
	}
	rows, err := s.stats.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("fetching period stats: %w", err)
	}

	out := &PeriodStandings{
		Period:     period,
		TieMode:    calc.TieMode(),
		Categories: calc.Categories(),
		Rows:       calc.Calculate(rows),
		ComputedAt: time.Now().UTC(),
	}
	s.store(ctx, key, out)
	return out, nil
}

// SeasonStandings sums every non-draft period of a season
func (s *StandingsService) SeasonStandings(ctx context.Context, year int, tie roto.TieMode) (*SeasonStandings, error) {
	calc := s.calculator(tie)
	key := seasonKey(year, calc.TieMode())

	var cached SeasonStandings
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	periods, err := s.periods.ListPeriods(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("fetching periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("season %d: %w", year, store.ErrNotFound)
	}

	out := &SeasonStandings{Season: year, TieMode: calc.TieMode(), PeriodIDs: []int{}}
	var boards [][]roto.StandingsRow
	for _, p := range periods {
		if p.IsDraft {
			continue
		}
		ps, err := s.PeriodStandings(ctx, p.PeriodID, calc.TieMode())
		if err != nil {
			return nil, err
		}
		boards = append(boards, ps.Rows)
		out.PeriodIDs = append(out.PeriodIDs, p.PeriodID)
	}
	out.Rows = roto.SeasonTotals(boards)
	out.ComputedAt = time.Now().UTC()

	s.store(ctx, key, out)
	return out, nil
}

// Invalidate drops cached standings for the periods and their seasons
func (s *StandingsService) Invalidate(ctx context.Context, periodIDs ...int) {
	if s.cache == nil || len(periodIDs) == 0 {
		return
	}

	ties := []roto.TieMode{roto.TieKeepOrder, roto.TieSplit}
	seasons := make(map[int]bool)
	var keys []string
	for _, id := range periodIDs {
		for _, tie := range ties {
			keys = append(keys, periodKey(id, tie))
		}
		if p, err := s.periods.GetPeriod(ctx, id); err == nil && !seasons[p.SeasonYear] {
			seasons[p.SeasonYear] = true
			for _, tie := range ties {
				keys = append(keys, seasonKey(p.SeasonYear, tie))
			}
		}
	}

	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).Warn("⚠️  failed to invalidate standings cache")
	}
}

// OnImportComplete implements importer.Listener
func (s *StandingsService) OnImportComplete(summary *importer.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Invalidate(ctx, summary.PeriodIDs...)
}

// OnRefreshEvent implements refresh.Listener. A refreshed period has its
// standings recomputed and announced.
func (s *StandingsService) OnRefreshEvent(ev refresh.Event) {
	if ev.Type != "period_complete" || ev.PeriodID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Invalidate(ctx, ev.PeriodID)
	if s.publisher == nil {
		return
	}

	standings, err := s.PeriodStandings(ctx, ev.PeriodID, "")
	if err != nil {
		s.log.WithError(err).WithField("period", ev.PeriodID).Warn("⚠️  failed to recompute standings")
		return
	}
	if err := s.publisher.PublishStandings(ctx, standings); err != nil {
		s.log.WithError(err).Warn("⚠️  failed to publish standings")
	}
}

func (s *StandingsService) lookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Debug("cache read failed")
		return false
	}
	return ok
}

func (s *StandingsService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}
