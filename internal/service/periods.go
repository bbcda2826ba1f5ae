package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/almanac/internal/store"
)

// PeriodWriter updates period dates. *repository.SeasonRepository
// implements it.
type PeriodWriter interface {
	SetPeriodDates(ctx context.Context, periodID int, start, end time.Time) (*store.Period, error)
}

// PeriodService serves periods and their normalized rows
type PeriodService struct {
	periods PeriodReader
	writer  PeriodWriter
	stats   StatsReader
}

// NewPeriodService creates a new period service
func NewPeriodService(periods PeriodReader, writer PeriodWriter, stats StatsReader) *PeriodService {
	return &PeriodService{periods: periods, writer: writer, stats: stats}
}

// PeriodStats is a period with its rows
type PeriodStats struct {
	Period     *store.Period            `json:"period"`
	Rows       []store.PlayerPeriodStat `json:"rows"`
	Unresolved int                      `json:"unresolved"`
}

// ListPeriods returns a season's periods
func (s *PeriodService) ListPeriods(ctx context.Context, year int) ([]*store.Period, error) {
	periods, err := s.periods.ListPeriods(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("fetching periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("season %d: %w", year, store.ErrNotFound)
	}
	return periods, nil
}

// SetDates sets a period's inclusive date range
func (s *PeriodService) SetDates(ctx context.Context, periodID int, start, end time.Time) (*store.Period, error) {
	return s.writer.SetPeriodDates(ctx, periodID, start, end)
}

// GetPeriodStats returns a period's rows
func (s *PeriodService) GetPeriodStats(ctx context.Context, periodID int) (*PeriodStats, error) {
	period, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("fetching period: %w", err)
	}
	rows, err := s.stats.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("fetching period stats: %w", err)
	}

	out := &PeriodStats{Period: period, Rows: rows}
	if out.Rows == nil {
		out.Rows = []store.PlayerPeriodStat{}
	}
	for i := range rows {
		if !rows[i].Resolved() {
			out.Unresolved++
		}
	}
	return out, nil
}
