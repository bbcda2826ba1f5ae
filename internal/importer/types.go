package importer

import (
	"context"
	"time"

	"github.com/fortuna/almanac/internal/sheet"
	"github.com/fortuna/almanac/internal/store"
)

// SeasonStore creates seasons and periods. *repository.SeasonRepository
// implements it.
type SeasonStore interface {
	EnsureSeason(ctx context.Context, year int) (*store.Season, error)
	UpsertPeriod(ctx context.Context, seasonID, number int, label string, isDraft bool) (*store.Period, error)
	SetPeriodDates(ctx context.Context, periodID int, start, end time.Time) (*store.Period, error)
}

// StatsStore persists roster rows. *repository.StatsRepository implements it.
type StatsStore interface {
	UpsertIdentity(ctx context.Context, s *store.PlayerPeriodStat) (int64, error)
	ListHistory(ctx context.Context) ([]store.PlayerPeriodStat, error)
	ListUnresolved(ctx context.Context, seasonYear int) ([]store.PlayerPeriodStat, error)
}

// ReportStore persists identity reports. *repository.ReportRepository
// implements it.
type ReportStore interface {
	Upsert(ctx context.Context, rep *store.IdentityReport) error
	MarkResolved(ctx context.Context, periodID int, nameRaw, teamCode string) error
}

// Listener is notified after an import or re-resolution finishes.
type Listener interface {
	OnImportComplete(summary *Summary)
}

// Operation names what produced a Summary.
type Operation string

const (
	OperationImport  Operation = "import"
	OperationResolve Operation = "resolve"
)

// DateRange is an inclusive period date range.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Options tunes one import.
type Options struct {
	// DryRun extracts and resolves without writing anything.
	DryRun bool
	// Periods sets date ranges by period number.
	Periods map[int]DateRange
}

// Counts tallies resolution outcomes.
type Counts struct {
	Rows       int `json:"rows"`
	Exact      int `json:"exact"`
	Fuzzy      int `json:"fuzzy"`
	Unresolved int `json:"unresolved"`
	Ambiguous  int `json:"ambiguous"`
	Failed     int `json:"failed"`
}

func (c *Counts) add(o Counts) {
	c.Rows += o.Rows
	c.Exact += o.Exact
	c.Fuzzy += o.Fuzzy
	c.Unresolved += o.Unresolved
	c.Ambiguous += o.Ambiguous
	c.Failed += o.Failed
}

// SheetSummary reports what happened to one sheet.
type SheetSummary struct {
	Name     string       `json:"name"`
	Kind     sheet.Kind   `json:"kind"`
	Number   int          `json:"number"`
	Layout   sheet.Layout `json:"layout,omitempty"`
	PeriodID int          `json:"period_id,omitempty"`
	Skipped  string       `json:"skipped,omitempty"`
	Error    string       `json:"error,omitempty"`
	Counts

	// Preview holds the rows that would be written, on dry runs only.
	Preview []store.PlayerPeriodStat `json:"preview,omitempty"`
}

// Summary reports one import or re-resolution run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Operation  Operation      `json:"operation"`
	Season     int            `json:"season"`
	DryRun     bool           `json:"dry_run"`
	Sheets     []SheetSummary `json:"sheets,omitempty"`
	PeriodIDs  []int          `json:"period_ids"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Counts
}

func (s *Summary) touchPeriod(id int) {
	for _, existing := range s.PeriodIDs {
		if existing == id {
			return
		}
	}
	s.PeriodIDs = append(s.PeriodIDs, id)
}
