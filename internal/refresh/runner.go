package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/ingest/mlb"
	"github.com/fortuna/almanac/internal/store"
)

// ErrNoDates is returned for periods without a date range.
var ErrNoDates = errors.New("period has no date range")

// PeriodStore reads periods.
type PeriodStore interface {
	GetPeriod(ctx context.Context, periodID int) (*store.Period, error)
	ListPeriods(ctx context.Context, seasonYear int) ([]*store.Period, error)
}

// StatsStore reads period rows and writes refreshed counters.
type StatsStore interface {
	ListByPeriod(ctx context.Context, periodID int) ([]store.PlayerPeriodStat, error)
	// ApplyRefresh replaces the row's counters. An empty mlbTeam leaves the
	// stored team untouched.
	ApplyRefresh(ctx context.Context, statID int64, counters store.Counters, mlbTeam string, refreshedAt time.Time) error
}

// Runner refreshes whole periods and writes the results back.
type Runner struct {
	periods   PeriodStore
	stats     StatsStore
	refresher *Refresher
	log       *logrus.Entry
	now       func() time.Time
}

// NewRunner constructs a runner.
func NewRunner(periods PeriodStore, stats StatsStore, refresher *Refresher) *Runner {
	return &Runner{
		periods:   periods,
		stats:     stats,
		refresher: refresher,
		log:       logrus.WithField("component", "refresh-runner"),
		now:       time.Now,
	}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// A period that cannot be refreshed is reported and skipped; only
// cancellation stops the run early.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) error {
	if reporter != nil {
		reporter.OnJobStart(spec)
	}

	periods, err := r.resolvePeriods(ctx, spec)
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return err
	}
	if len(periods) == 0 && reporter != nil {
		reporter.OnProgress("No periods to refresh", 0, 0)
	}

	total := len(periods)
	for idx, period := range periods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if reporter != nil {
			reporter.OnPeriodStart(period, idx, total)
		}

		result, err := r.RunPeriod(ctx, period.PeriodID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if reporter != nil {
				reporter.OnJobError(fmt.Errorf("period %d: %w", period.PeriodID, err))
			}
			continue
		}

		if reporter != nil {
			reporter.OnPeriodComplete(result)
			reporter.OnProgress(fmt.Sprintf("✓ %s refreshed (%d/%d players)", period.Label, result.Refreshed, result.Targets), idx+1, total)
		}
	}

	if reporter != nil {
		reporter.OnJobComplete()
	}
	return nil
}

func (r *Runner) resolvePeriods(ctx context.Context, spec JobSpec) ([]*store.Period, error) {
	switch spec.Type {
	case JobTypePeriod:
		if len(spec.PeriodIDs) == 0 {
			return nil, fmt.Errorf("no period ids provided for job type 'period'")
		}
		periods := make([]*store.Period, 0, len(spec.PeriodIDs))
		for _, id := range spec.PeriodIDs {
			p, err := r.periods.GetPeriod(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("load period %d: %w", id, err)
			}
			periods = append(periods, p)
		}
		return periods, nil
	case JobTypeSeason:
		all, err := r.periods.ListPeriods(ctx, spec.SeasonYear)
		if err != nil {
			return nil, fmt.Errorf("list periods for %d: %w", spec.SeasonYear, err)
		}
		var periods []*store.Period
		for _, p := range all {
			if !p.IsDraft && p.HasDates() {
				periods = append(periods, p)
			}
		}
		return periods, nil
	default:
		return nil, fmt.Errorf("unsupported job type %s", spec.Type)
	}
}

// RunPeriod refreshes every resolved row of one period and replaces its
// counters. Rows whose player was skipped keep their stored values.
func (r *Runner) RunPeriod(ctx context.Context, periodID int) (*PeriodResult, error) {
	period, err := r.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load period: %w", err)
	}
	if !period.HasDates() {
		return nil, ErrNoDates
	}

	rows, err := r.stats.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load period rows: %w", err)
	}

	result := &PeriodResult{PeriodID: periodID, Rows: len(rows)}
	byID := make(map[string][]int)
	var targets []Target
	for i := range rows {
		if !rows[i].Resolved() {
			result.Unresolved++
			continue
		}
		id := rows[i].ExternalID.String
		if _, ok := byID[id]; !ok {
			targets = append(targets, Target{ExternalID: id, IsPitcher: rows[i].IsPitcher})
		}
		byID[id] = append(byID[id], i)
	}
	result.Targets = len(targets)

	entry := r.log.WithFields(logrus.Fields{"period": periodID, "label": period.Label})
	entry.Infof("Refreshing %d players", len(targets))

	deltas, refreshErr := r.refresher.Refresh(ctx, targets, period.StartDate.Time, period.EndDate.Time)

	refreshedAt := r.now()
	for id, delta := range deltas {
		for _, i := range byID[id] {
			row := &rows[i]
			if (delta.Line.Group == mlb.GroupPitching) != row.IsPitcher {
				entry.WithField("player", row.PlayerNameRaw).Warn("⚠️  stat group does not match row, skipping")
				continue
			}
			if err := r.stats.ApplyRefresh(ctx, row.StatID, delta.Line.Counters(), delta.MLBTeam, refreshedAt); err != nil {
				entry.WithError(err).WithField("player", row.PlayerNameRaw).Error("failed to store refreshed stats")
				continue
			}
			result.Refreshed++
		}
	}
	result.Skipped = len(rows) - result.Unresolved - result.Refreshed

	entry.WithFields(logrus.Fields{
		"refreshed":  result.Refreshed,
		"skipped":    result.Skipped,
		"unresolved": result.Unresolved,
	}).Info("✓ Period refresh applied")

	if refreshErr != nil {
		return result, refreshErr
	}
	return result, nil
}
