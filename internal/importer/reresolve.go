package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/identity"
)

// Reresolve retries every unresolved or ambiguous row of a season against
// the current history. Rows are updated in place by their key; counters and
// draft dollars are kept.
func (i *Importer) Reresolve(ctx context.Context, seasonYear int) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Operation: OperationResolve,
		Season:    seasonYear,
		PeriodIDs: []int{},
		StartedAt: i.now(),
	}
	entry := i.log.WithFields(logrus.Fields{"run": summary.RunID, "season": seasonYear})

	kb, err := i.KnowledgeBase(ctx)
	if err != nil {
		return nil, err
	}
	resolver := identity.NewResolver(kb)

	rows, err := i.stats.ListUnresolved(ctx, seasonYear)
	if err != nil {
		return nil, fmt.Errorf("loading unresolved rows: %w", err)
	}
	entry.Infof("Re-resolving %d rows", len(rows))

	for idx := range rows {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = i.now()
			return summary, err
		}

		row := rows[idx]
		res := resolver.Resolve(row.PlayerNameRaw, row.IsPitcher)
		summary.Rows++
		tally(&summary.Counts, res)

		applyResolution(&row, res)
		if err := i.persist(ctx, &row, res); err != nil {
			summary.Failed++
			entry.WithError(err).WithField("player", row.PlayerNameRaw).Error("failed to update row")
			continue
		}
		if res.Status == identity.StatusResolved {
			summary.touchPeriod(row.PeriodID)
		}
	}
	summary.FinishedAt = i.now()

	entry.WithFields(logrus.Fields{
		"resolved":   summary.Exact + summary.Fuzzy,
		"unresolved": summary.Unresolved,
		"ambiguous":  summary.Ambiguous,
	}).Info("✓ Re-resolution complete")

	i.notify(summary)
	return summary, nil
}
