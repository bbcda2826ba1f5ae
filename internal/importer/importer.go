// Package importer loads archived league workbooks into the store: every
// sheet is extracted, every roster name resolved against prior history, and
// every row upserted by (period, raw name, team code).
package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/identity"
	"github.com/fortuna/almanac/internal/league"
	"github.com/fortuna/almanac/internal/sheet"
	"github.com/fortuna/almanac/internal/store"
	"github.com/fortuna/almanac/internal/workbook"
)

// Importer orchestrates season imports.
type Importer struct {
	seasons SeasonStore
	stats   StatsStore
	reports ReportStore
	vocab   *league.Vocabulary

	mu        sync.RWMutex
	listeners []Listener

	log *logrus.Entry
	now func() time.Time
}

// New creates an importer. A nil vocab uses the league defaults.
func New(seasons SeasonStore, stats StatsStore, reports ReportStore, vocab *league.Vocabulary) *Importer {
	if vocab == nil {
		vocab = league.DefaultVocabulary()
	}
	return &Importer{
		seasons: seasons,
		stats:   stats,
		reports: reports,
		vocab:   vocab,
		log:     logrus.WithField("component", "importer"),
		now:     time.Now,
	}
}

// Subscribe registers a listener for completed runs.
func (i *Importer) Subscribe(l Listener) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, l)
}

func (i *Importer) notify(summary *Summary) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, l := range i.listeners {
		l.OnImportComplete(summary)
	}
}

// KnowledgeBase builds a snapshot of all resolved history.
func (i *Importer) KnowledgeBase(ctx context.Context) (*identity.KnowledgeBase, error) {
	rows, err := i.stats.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	entries := make([]identity.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, identity.Entry{
			NameRaw: r.PlayerNameRaw,
			Identity: identity.Identity{
				FullName:   r.FullName,
				ExternalID: r.ExternalID.String,
				Position:   r.Position.String,
				MLBTeam:    r.MLBTeam.String,
				IsPitcher:  r.IsPitcher,
			},
		})
	}
	return identity.NewKnowledgeBase(entries), nil
}

// Import extracts every sheet of wb and stores its rows under season. Sheets
// that cannot be classified are skipped; a failed row write is logged and
// counted without stopping the run. On cancellation the partial summary is
// returned with the context error.
func (i *Importer) Import(ctx context.Context, season int, wb *workbook.Workbook, opts Options) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Operation: OperationImport,
		Season:    season,
		DryRun:    opts.DryRun,
		PeriodIDs: []int{},
		StartedAt: i.now(),
	}
	entry := i.log.WithFields(logrus.Fields{"run": summary.RunID, "season": season, "dry_run": opts.DryRun})

	kb, err := i.KnowledgeBase(ctx)
	if err != nil {
		return nil, err
	}
	resolver := identity.NewResolver(kb)
	entry.WithField("known_names", kb.Size()).Infof("Importing %d sheets", len(wb.Sheets))

	var seasonRow *store.Season
	if !opts.DryRun {
		if seasonRow, err = i.seasons.EnsureSeason(ctx, season); err != nil {
			return nil, fmt.Errorf("ensure season: %w", err)
		}
	}

	for _, sh := range wb.Sheets {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = i.now()
			return summary, err
		}

		ss := i.importSheet(ctx, seasonRow, season, sh, resolver, opts)
		summary.Counts.add(ss.Counts)
		if ss.PeriodID != 0 {
			summary.touchPeriod(ss.PeriodID)
		}
		summary.Sheets = append(summary.Sheets, ss)
	}
	summary.FinishedAt = i.now()

	entry.WithFields(logrus.Fields{
		"rows":       summary.Rows,
		"exact":      summary.Exact,
		"fuzzy":      summary.Fuzzy,
		"unresolved": summary.Unresolved,
		"ambiguous":  summary.Ambiguous,
		"failed":     summary.Failed,
	}).Info("✓ Import complete")

	if !opts.DryRun {
		i.notify(summary)
	}
	return summary, nil
}

func (i *Importer) importSheet(ctx context.Context, season *store.Season, year int, sh workbook.Sheet, resolver *identity.Resolver, opts Options) SheetSummary {
	kind, number := sheet.Classify(sh.Name)
	ss := SheetSummary{Name: sh.Name, Kind: kind, Number: number}
	entry := i.log.WithFields(logrus.Fields{"sheet": sh.Name, "kind": kind})

	if kind == sheet.KindPeriod && number == 0 {
		ss.Skipped = "unrecognised sheet name"
		entry.Warn("⚠️  Skipping unrecognised sheet")
		return ss
	}

	res := sheet.Extract(sh.Grid, kind, sheet.Options{Vocabulary: i.vocab, Season: year})
	ss.Layout = res.Layout

	switch {
	case kind == sheet.KindStandings:
		ss.Skipped = "standings are computed, not imported"
		return ss
	case res.Layout == sheet.LayoutOpaque:
		ss.Skipped = "no roster layout detected"
		entry.Warn("⚠️  Sheet has no recognisable roster layout")
		return ss
	}

	var period *store.Period
	if !opts.DryRun {
		p, err := i.seasons.UpsertPeriod(ctx, season.SeasonID, number, sh.Name, kind == sheet.KindDraft)
		if err != nil {
			ss.Error = err.Error()
			entry.WithError(err).Error("failed to upsert period")
			return ss
		}
		if dr, ok := opts.Periods[number]; ok {
			if updated, err := i.seasons.SetPeriodDates(ctx, p.PeriodID, dr.Start, dr.End); err != nil {
				entry.WithError(err).Warn("⚠️  failed to set period dates")
			} else {
				p = updated
			}
		}
		period = p
		ss.PeriodID = p.PeriodID
	}

	for _, raw := range res.Rows {
		resolution := resolver.Resolve(raw.PlayerNameRaw, raw.IsPitcherGuess)
		ss.Rows++
		tally(&ss.Counts, resolution)

		row := buildRow(raw, resolution)
		if opts.DryRun {
			ss.Preview = append(ss.Preview, row)
			continue
		}

		row.PeriodID = period.PeriodID
		if err := i.persist(ctx, &row, resolution); err != nil {
			ss.Failed++
			entry.WithError(err).WithField("player", raw.PlayerNameRaw).Error("failed to store row")
		}
	}

	entry.WithFields(logrus.Fields{"rows": ss.Rows, "layout": ss.Layout}).Info("✓ Sheet imported")
	return ss
}

// persist writes the row and files or closes its identity report.
func (i *Importer) persist(ctx context.Context, row *store.PlayerPeriodStat, res identity.Resolution) error {
	if _, err := i.stats.UpsertIdentity(ctx, row); err != nil {
		return err
	}

	if res.Status == identity.StatusResolved {
		return i.reports.MarkResolved(ctx, row.PeriodID, row.PlayerNameRaw, row.TeamCode)
	}

	candidates, err := json.Marshal(res.Candidates)
	if err != nil || res.Candidates == nil {
		candidates = []byte("[]")
	}
	return i.reports.Upsert(ctx, &store.IdentityReport{
		PeriodID:      row.PeriodID,
		PlayerNameRaw: row.PlayerNameRaw,
		TeamCode:      row.TeamCode,
		Status:        row.Resolution,
		Candidates:    candidates,
		Note:          nullString(res.Note),
	})
}

func tally(c *Counts, res identity.Resolution) {
	switch {
	case res.Status == identity.StatusResolved && res.Method == identity.MethodExact:
		c.Exact++
	case res.Status == identity.StatusResolved:
		c.Fuzzy++
	case res.Status == identity.StatusAmbiguous:
		c.Ambiguous++
	default:
		c.Unresolved++
	}
}

// buildRow turns an extracted row and its resolution into a store row
// without a period.
func buildRow(raw sheet.RawPlayerRow, res identity.Resolution) store.PlayerPeriodStat {
	row := store.PlayerPeriodStat{
		PlayerNameRaw: raw.PlayerNameRaw,
		TeamCode:      raw.TeamCode,
		FullName:      raw.PlayerNameRaw,
		Position:      nullString(raw.Position),
		IsPitcher:     raw.IsPitcherGuess,
		Resolution:    store.ResolutionUnresolved,
	}
	if raw.DraftDollars != nil {
		row.DraftDollars = sql.NullInt32{Int32: int32(*raw.DraftDollars), Valid: true}
	}
	applyResolution(&row, res)
	return row
}

// applyResolution copies a resolution's outcome onto row. Unresolved and
// ambiguous results clear any previous identity.
func applyResolution(row *store.PlayerPeriodStat, res identity.Resolution) {
	switch res.Status {
	case identity.StatusResolved:
		id := res.Identity
		if id.FullName != "" {
			row.FullName = id.FullName
		}
		row.ExternalID = nullString(id.ExternalID)
		if id.Position != "" {
			row.Position = nullString(id.Position)
		}
		if id.MLBTeam != "" {
			row.MLBTeam = nullString(id.MLBTeam)
		}
		row.IsPitcher = id.IsPitcher
		row.Resolution = store.ResolutionExact
		if res.Method == identity.MethodFuzzy {
			row.Resolution = store.ResolutionFuzzy
		}
	case identity.StatusAmbiguous:
		row.ExternalID = sql.NullString{}
		row.Resolution = store.ResolutionAmbiguous
	default:
		row.ExternalID = sql.NullString{}
		row.Resolution = store.ResolutionUnresolved
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
