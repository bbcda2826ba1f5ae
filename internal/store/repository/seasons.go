package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/almanac/internal/store"
)

// SeasonRepository handles seasons and their periods
type SeasonRepository struct {
	db *store.Database
}

// NewSeasonRepository creates a new season repository
func NewSeasonRepository(db *store.Database) *SeasonRepository {
	return &SeasonRepository{db: db}
}

// EnsureSeason returns the season for year, creating it if needed
func (r *SeasonRepository) EnsureSeason(ctx context.Context, year int) (*store.Season, error) {
	query := `
		INSERT INTO seasons (year)
		VALUES ($1)
		ON CONFLICT (year) DO UPDATE SET updated_at = NOW()
		RETURNING season_id, year, created_at, updated_at
	`

	season := &store.Season{}
	err := r.db.DB().QueryRowContext(ctx, query, year).Scan(
		&season.SeasonID, &season.Year, &season.CreatedAt, &season.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting season %d: %w", year, err)
	}
	return season, nil
}

// ListSeasons returns all seasons, newest first
func (r *SeasonRepository) ListSeasons(ctx context.Context) ([]*store.Season, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT season_id, year, created_at, updated_at
		FROM seasons
		ORDER BY year DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying seasons: %w", err)
	}
	defer rows.Close()

	var seasons []*store.Season
	for rows.Next() {
		s := &store.Season{}
		if err := rows.Scan(&s.SeasonID, &s.Year, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning season: %w", err)
		}
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

// UpsertPeriod creates or relabels period number within a season. Dates are
// left as they are.
func (r *SeasonRepository) UpsertPeriod(ctx context.Context, seasonID, number int, label string, isDraft bool) (*store.Period, error) {
	query := `
		WITH upserted AS (
			INSERT INTO periods (season_id, number, label, is_draft)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (season_id, number) DO UPDATE SET
				label = EXCLUDED.label,
				is_draft = EXCLUDED.is_draft,
				updated_at = NOW()
			RETURNING *
		)
		SELECT u.period_id, u.season_id, u.number, u.label, u.is_draft,
			u.start_date, u.end_date, u.created_at, u.updated_at, s.year
		FROM upserted u
		JOIN seasons s ON s.season_id = u.season_id
	`

	p, err := scanPeriod(r.db.DB().QueryRowContext(ctx, query, seasonID, number, label, isDraft))
	if err != nil {
		return nil, fmt.Errorf("upserting period %d: %w", number, err)
	}
	return p, nil
}

const periodColumns = `
	p.period_id, p.season_id, p.number, p.label, p.is_draft,
	p.start_date, p.end_date, p.created_at, p.updated_at, s.year
`

// GetPeriod finds a period by ID
func (r *SeasonRepository) GetPeriod(ctx context.Context, periodID int) (*store.Period, error) {
	query := `SELECT ` + periodColumns + `
		FROM periods p
		JOIN seasons s ON s.season_id = p.season_id
		WHERE p.period_id = $1
	`

	p, err := scanPeriod(r.db.DB().QueryRowContext(ctx, query, periodID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("period %d: %w", periodID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying period: %w", err)
	}
	return p, nil
}

// ListPeriods returns a season's periods in number order, draft first
func (r *SeasonRepository) ListPeriods(ctx context.Context, seasonYear int) ([]*store.Period, error) {
	query := `SELECT ` + periodColumns + `
		FROM periods p
		JOIN seasons s ON s.season_id = p.season_id
		WHERE s.year = $1
		ORDER BY p.number
	`
	return r.queryPeriods(ctx, query, seasonYear)
}

// ActivePeriods returns non-draft periods whose date range contains asOf or
// ended within grace before it.
func (r *SeasonRepository) ActivePeriods(ctx context.Context, asOf time.Time, grace time.Duration) ([]*store.Period, error) {
	query := `SELECT ` + periodColumns + `
		FROM periods p
		JOIN seasons s ON s.season_id = p.season_id
		WHERE NOT p.is_draft
			AND p.start_date IS NOT NULL AND p.end_date IS NOT NULL
			AND p.start_date <= $1::date
			AND p.end_date >= $2::date
		ORDER BY p.start_date
	`
	return r.queryPeriods(ctx, query, asOf, asOf.Add(-grace))
}

// SetPeriodDates sets the inclusive date range of a period
func (r *SeasonRepository) SetPeriodDates(ctx context.Context, periodID int, start, end time.Time) (*store.Period, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE periods
		SET start_date = $2, end_date = $3, updated_at = NOW()
		WHERE period_id = $1
	`, periodID, start, end)
	if err != nil {
		return nil, fmt.Errorf("updating period dates: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("period %d: %w", periodID, store.ErrNotFound)
	}
	return r.GetPeriod(ctx, periodID)
}

func (r *SeasonRepository) queryPeriods(ctx context.Context, query string, args ...interface{}) ([]*store.Period, error) {
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying periods: %w", err)
	}
	defer rows.Close()

	var periods []*store.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPeriod(row scanner) (*store.Period, error) {
	p := &store.Period{}
	err := row.Scan(
		&p.PeriodID, &p.SeasonID, &p.Number, &p.Label, &p.IsDraft,
		&p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt, &p.SeasonYear,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
