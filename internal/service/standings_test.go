package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/refresh"
	"github.com/fortuna/almanac/internal/roto"
	"github.com/fortuna/almanac/internal/store"
)

type fakeLeague struct {
	periods map[int]*store.Period
	rows    map[int][]store.PlayerPeriodStat
	reads   int
}

func (f *fakeLeague) GetPeriod(_ context.Context, id int) (*store.Period, error) {
	p, ok := f.periods[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeLeague) ListPeriods(_ context.Context, year int) ([]*store.Period, error) {
	var out []*store.Period
	for id := 1; id <= len(f.periods); id++ {
		if p := f.periods[id]; p != nil && p.SeasonYear == year {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeLeague) ListByPeriod(_ context.Context, id int) ([]store.PlayerPeriodStat, error) {
	f.reads++
	return f.rows[id], nil
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type standingsSink struct{ published []interface{} }

func (s *standingsSink) PublishStandings(_ context.Context, v interface{}) error {
	s.published = append(s.published, v)
	return nil
}

func hr(team string, n int) store.PlayerPeriodStat {
	return store.PlayerPeriodStat{TeamCode: team, AtBats: 10, Hits: 3, HomeRuns: n}
}

func league() *fakeLeague {
	return &fakeLeague{
		periods: map[int]*store.Period{
			1: {PeriodID: 1, Number: 0, IsDraft: true, SeasonYear: 2024},
			2: {PeriodID: 2, Number: 1, SeasonYear: 2024},
			3: {PeriodID: 3, Number: 2, SeasonYear: 2024},
		},
		rows: map[int][]store.PlayerPeriodStat{
			2: {hr("MTK", 5), hr("RLC", 2)},
			3: {hr("MTK", 1), hr("RLC", 4)},
		},
	}
}

func newService(t *testing.T, l *fakeLeague, c Cache) *StandingsService {
	t.Helper()
	calc, err := roto.NewCalculator(roto.Config{Categories: []roto.Category{{Name: "HR"}}})
	if err != nil {
		t.Fatal(err)
	}
	return NewStandingsService(l, l, calc, c, time.Hour)
}

func TestPeriodStandingsCached(t *testing.T) {
	l := league()
	svc := newService(t, l, &memCache{data: map[string][]byte{}})
	ctx := context.Background()

	first, err := svc.PeriodStandings(ctx, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Rows[0].TeamCode != "MTK" || first.Rows[0].TotalScore != 2 {
		t.Fatalf("rows = %+v", first.Rows)
	}

	second, err := svc.PeriodStandings(ctx, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if l.reads != 1 || second.Rows[0].TeamCode != "MTK" {
		t.Fatalf("reads = %d, second = %+v", l.reads, second)
	}

	svc.OnImportComplete(&importer.Summary{PeriodIDs: []int{2}})
	if _, err := svc.PeriodStandings(ctx, 2, ""); err != nil {
		t.Fatal(err)
	}
	if l.reads != 2 {
		t.Fatalf("invalidated standings served from cache (reads = %d)", l.reads)
	}
}

func TestPeriodStandingsTieOverride(t *testing.T) {
	l := league()
	l.rows[2] = []store.PlayerPeriodStat{hr("MTK", 3), hr("RLC", 3)}
	svc := newService(t, l, nil)

	split, err := svc.PeriodStandings(context.Background(), 2, roto.TieSplit)
	if err != nil {
		t.Fatal(err)
	}
	if split.TieMode != roto.TieSplit || split.Rows[0].TotalScore != 1.5 || split.Rows[1].TotalScore != 1.5 {
		t.Fatalf("split = %+v", split)
	}
}

func TestSeasonStandingsSkipsDraft(t *testing.T) {
	l := league()
	svc := newService(t, l, nil)

	season, err := svc.SeasonStandings(context.Background(), 2024, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(season.PeriodIDs) != 2 || season.PeriodIDs[0] != 2 {
		t.Fatalf("periods = %v", season.PeriodIDs)
	}
	// MTK wins P1, RLC wins P2: 3 points each, tie broken by team code.
	if season.Rows[0].TeamCode != "MTK" || season.Rows[0].TotalScore != 3 || season.Rows[1].TotalScore != 3 {
		t.Fatalf("rows = %+v", season.Rows)
	}

	if _, err := svc.SeasonStandings(context.Background(), 1999, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown season err = %v", err)
	}
}

func TestRefreshEventRecomputesAndPublishes(t *testing.T) {
	l := league()
	cache := &memCache{data: map[string][]byte{}}
	sink := &standingsSink{}
	svc := newService(t, l, cache).WithPublisher(sink)
	ctx := context.Background()

	if _, err := svc.SeasonStandings(ctx, 2024, ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.data[seasonKey(2024, roto.TieKeepOrder)]; !ok {
		t.Fatal("season standings not cached")
	}

	svc.OnRefreshEvent(refresh.Event{Type: "progress", PeriodID: 3})
	if len(sink.published) != 0 {
		t.Fatal("only completed periods trigger a recompute")
	}

	svc.OnRefreshEvent(refresh.Event{Type: "period_complete", PeriodID: 3})
	if len(sink.published) != 1 {
		t.Fatalf("published %d standings", len(sink.published))
	}
	if _, ok := cache.data[seasonKey(2024, roto.TieKeepOrder)]; ok {
		t.Fatal("season standings survived a period refresh")
	}
}

func TestPeriodServiceStats(t *testing.T) {
	l := league()
	l.rows[2][0].ExternalID.String, l.rows[2][0].ExternalID.Valid = "1", true
	svc := NewPeriodService(l, nil, l)

	ps, err := svc.GetPeriodStats(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps.Rows) != 2 || ps.Unresolved != 1 {
		t.Fatalf("period stats = %+v", ps)
	}

	if _, err := svc.GetPeriodStats(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.ListPeriods(context.Background(), 1999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
