package importer

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fortuna/almanac/internal/sheet"
	"github.com/fortuna/almanac/internal/store"
	"github.com/fortuna/almanac/internal/workbook"
)

type key struct {
	period int
	name   string
	team   string
}

type memStore struct {
	seasons map[int]*store.Season
	periods map[int]*store.Period // by period id
	rows    map[key]store.PlayerPeriodStat
	history []store.PlayerPeriodStat
	reports map[key]store.IdentityReport
	closed  map[key]bool
	failOn  string
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		seasons: map[int]*store.Season{},
		periods: map[int]*store.Period{},
		rows:    map[key]store.PlayerPeriodStat{},
		reports: map[key]store.IdentityReport{},
		closed:  map[key]bool{},
	}
}

func (m *memStore) EnsureSeason(_ context.Context, year int) (*store.Season, error) {
	if s, ok := m.seasons[year]; ok {
		return s, nil
	}
	m.nextID++
	s := &store.Season{SeasonID: m.nextID, Year: year}
	m.seasons[year] = s
	return s, nil
}

func (m *memStore) UpsertPeriod(_ context.Context, seasonID, number int, label string, isDraft bool) (*store.Period, error) {
	for _, p := range m.periods {
		if p.SeasonID == seasonID && p.Number == number {
			p.Label, p.IsDraft = label, isDraft
			return p, nil
		}
	}
	m.nextID++
	p := &store.Period{PeriodID: m.nextID, SeasonID: seasonID, Number: number, Label: label, IsDraft: isDraft}
	m.periods[p.PeriodID] = p
	return p, nil
}

func (m *memStore) SetPeriodDates(_ context.Context, periodID int, start, end time.Time) (*store.Period, error) {
	p, ok := m.periods[periodID]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.StartDate = sql.NullTime{Time: start, Valid: true}
	p.EndDate = sql.NullTime{Time: end, Valid: true}
	return p, nil
}

func (m *memStore) UpsertIdentity(_ context.Context, s *store.PlayerPeriodStat) (int64, error) {
	if s.PlayerNameRaw == m.failOn {
		return 0, errors.New("constraint violation")
	}
	k := key{s.PeriodID, s.PlayerNameRaw, s.TeamCode}
	existing, ok := m.rows[k]
	row := *s
	if ok {
		// Counters survive an identity upsert.
		row.StatID = existing.StatID
		row.AtBats, row.HomeRuns, row.Wins = existing.AtBats, existing.HomeRuns, existing.Wins
	} else {
		row.StatID = int64(len(m.rows) + 1)
	}
	m.rows[k] = row
	return row.StatID, nil
}

func (m *memStore) ListHistory(context.Context) ([]store.PlayerPeriodStat, error) {
	return m.history, nil
}

func (m *memStore) ListUnresolved(_ context.Context, _ int) ([]store.PlayerPeriodStat, error) {
	var out []store.PlayerPeriodStat
	for _, r := range m.rows {
		if r.Resolution == store.ResolutionUnresolved || r.Resolution == store.ResolutionAmbiguous {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, rep *store.IdentityReport) error {
	k := key{rep.PeriodID, rep.PlayerNameRaw, rep.TeamCode}
	m.reports[k] = *rep
	delete(m.closed, k)
	return nil
}

func (m *memStore) MarkResolved(_ context.Context, periodID int, nameRaw, teamCode string) error {
	k := key{periodID, nameRaw, teamCode}
	if _, ok := m.reports[k]; ok {
		m.closed[k] = true
	}
	return nil
}

func (m *memStore) row(t *testing.T, periodNumber int, name, team string) store.PlayerPeriodStat {
	t.Helper()
	for _, p := range m.periods {
		if p.Number == periodNumber {
			r, ok := m.rows[key{p.PeriodID, name, team}]
			if !ok {
				t.Fatalf("no row for %q/%s in period %d", name, team, periodNumber)
			}
			return r
		}
	}
	t.Fatalf("no period %d", periodNumber)
	return store.PlayerPeriodStat{}
}

func resolvedHistory(name, full, id string, pitcher bool) store.PlayerPeriodStat {
	return store.PlayerPeriodStat{
		PlayerNameRaw: name,
		FullName:      full,
		ExternalID:    sql.NullString{String: id, Valid: true},
		IsPitcher:     pitcher,
		Resolution:    store.ResolutionExact,
	}
}

type recorder struct{ summaries []*Summary }

func (r *recorder) OnImportComplete(s *Summary) { r.summaries = append(r.summaries, s) }

func season2024() *workbook.Workbook {
	wb := &workbook.Workbook{}
	wb.Add("Draft", sheet.Grid{
		{"", "Moose Tracks", "", "Rally Caps", ""},
		{"OF", "J. Soto", "$31", "Mystery Man", "$1"},
		{"P", "Smith W", "$9", "G. Cole", "$25"},
	})
	wb.Add("P1", sheet.Grid{
		{"", "Moose Tracks", "Rally Caps"},
		{"OF", "Soto J", "Mystery Man"},
		{"P", "Smith W", "G. Cole"},
		{"Total", "", ""},
	})
	wb.Add("Standings", sheet.Grid{{"Team", "Points"}, {"MTK", "60"}})
	wb.Add("Notes", sheet.Grid{{"remember the trade deadline"}})
	return wb
}

func newFixture() (*memStore, *Importer) {
	m := newMemStore()
	m.history = []store.PlayerPeriodStat{
		resolvedHistory("J. Soto", "Juan Soto", "665742", false),
		resolvedHistory("G. Cole", "Gerrit Cole", "543037", true),
		resolvedHistory("Will Smith", "Will Smith", "519293", true),
		resolvedHistory("Wade Smith", "Wade Smith", "600001", true),
	}
	return m, New(m, m, m, nil)
}

func TestImportSeason(t *testing.T) {
	m, imp := newFixture()
	rec := &recorder{}
	imp.Subscribe(rec)

	p1Start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	summary, err := imp.Import(context.Background(), 2024, season2024(), Options{
		Periods: map[int]DateRange{1: {Start: p1Start, End: p1Start.AddDate(0, 0, 13)}},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	// Draft: Soto and Cole exact, Smith ambiguous, Mystery unresolved.
	// P1: "Soto J" fuzzy, Cole exact, Smith ambiguous, Mystery unresolved.
	want := Counts{Rows: 8, Exact: 3, Fuzzy: 1, Unresolved: 2, Ambiguous: 2}
	if summary.Counts != want {
		t.Fatalf("counts = %+v, want %+v", summary.Counts, want)
	}
	if len(summary.PeriodIDs) != 2 || len(summary.Sheets) != 4 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Sheets[2].Skipped == "" || summary.Sheets[3].Skipped == "" {
		t.Fatalf("standings and notes sheets must be skipped: %+v", summary.Sheets[2:])
	}

	soto := m.row(t, 0, "J. Soto", "MTK")
	if soto.ExternalID.String != "665742" || soto.Resolution != store.ResolutionExact || soto.DraftDollars.Int32 != 31 {
		t.Fatalf("draft soto = %+v", soto)
	}
	fuzzy := m.row(t, 1, "Soto J", "MTK")
	if fuzzy.ExternalID.String != "665742" || fuzzy.Resolution != store.ResolutionFuzzy || fuzzy.FullName != "Juan Soto" {
		t.Fatalf("p1 soto = %+v", fuzzy)
	}
	smith := m.row(t, 1, "Smith W", "MTK")
	if smith.Resolved() || smith.Resolution != store.ResolutionAmbiguous {
		t.Fatalf("ambiguous row picked an identity: %+v", smith)
	}

	if len(m.reports) != 4 {
		t.Fatalf("reports = %d, want 4", len(m.reports))
	}
	for _, p := range m.periods {
		if p.Number == 1 && !p.HasDates() {
			t.Fatal("period 1 dates not applied")
		}
	}
	if len(rec.summaries) != 1 {
		t.Fatalf("listener called %d times", len(rec.summaries))
	}
}

func TestImportDryRunWritesNothing(t *testing.T) {
	m, imp := newFixture()
	rec := &recorder{}
	imp.Subscribe(rec)

	summary, err := imp.Import(context.Background(), 2024, season2024(), Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.rows) != 0 || len(m.seasons) != 0 || len(m.reports) != 0 {
		t.Fatal("dry run wrote to the store")
	}
	if summary.Rows != 8 || len(summary.Sheets[1].Preview) != 4 {
		t.Fatalf("dry run summary = %+v", summary)
	}
	if len(rec.summaries) != 0 {
		t.Fatal("dry runs are not announced")
	}
}

func TestImportRowFailureDoesNotAbort(t *testing.T) {
	m, imp := newFixture()
	m.failOn = "G. Cole"

	summary, err := imp.Import(context.Background(), 2024, season2024(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 2 || len(m.rows) != 6 {
		t.Fatalf("failed = %d, stored = %d", summary.Failed, len(m.rows))
	}
}

func TestReimportKeepsCounters(t *testing.T) {
	m, imp := newFixture()
	if _, err := imp.Import(context.Background(), 2024, season2024(), Options{}); err != nil {
		t.Fatal(err)
	}
	for k, r := range m.rows {
		r.HomeRuns = 7
		m.rows[k] = r
	}

	if _, err := imp.Import(context.Background(), 2024, season2024(), Options{}); err != nil {
		t.Fatal(err)
	}
	if len(m.rows) != 8 {
		t.Fatalf("re-import duplicated rows: %d", len(m.rows))
	}
	if r := m.row(t, 1, "Soto J", "MTK"); r.HomeRuns != 7 {
		t.Fatalf("counters lost on re-import: %+v", r)
	}
}

func TestReresolveUsesNewHistory(t *testing.T) {
	m, imp := newFixture()
	if _, err := imp.Import(context.Background(), 2024, season2024(), Options{}); err != nil {
		t.Fatal(err)
	}

	m.history = append(m.history, resolvedHistory("Mystery Man", "Marcus Mystery", "700700", false))

	summary, err := imp.Reresolve(context.Background(), 2024)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Rows != 4 || summary.Exact != 2 || summary.Ambiguous != 2 {
		t.Fatalf("counts = %+v", summary.Counts)
	}

	r := m.row(t, 1, "Mystery Man", "RLC")
	if r.ExternalID.String != "700700" || r.Resolution != store.ResolutionExact || r.DraftDollars.Valid {
		t.Fatalf("re-resolved row = %+v", r)
	}
	if d := m.row(t, 0, "Mystery Man", "RLC"); d.DraftDollars.Int32 != 1 {
		t.Fatalf("draft dollars lost: %+v", d)
	}
	if !m.closed[key{r.PeriodID, "Mystery Man", "RLC"}] {
		t.Fatal("report not closed")
	}
	if len(summary.PeriodIDs) != 2 {
		t.Fatalf("touched periods = %v", summary.PeriodIDs)
	}
}
