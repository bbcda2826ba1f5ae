package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/almanac/internal/store"
)

// StatsRepository handles player-period stat rows
type StatsRepository struct {
	db *store.Database
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *store.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

const statColumns = `
	stat_id, period_id, player_name_raw, team_code, full_name, external_id,
	position, mlb_team, is_pitcher, resolution,
	at_bats, hits, runs, home_runs, rbi, stolen_bases, avg,
	wins, saves, strikeouts, innings_pitched, earned_runs, era, whip,
	draft_dollars, is_keeper, stats_refreshed_at, created_at, updated_at
`

// UpsertIdentity inserts or updates a row's identity keyed by
// (period, raw name, team code). Stat counters are never touched, so a
// re-import does not erase refreshed stats. A null mlb_team or draft_dollars
// keeps the stored value.
func (r *StatsRepository) UpsertIdentity(ctx context.Context, s *store.PlayerPeriodStat) (int64, error) {
	query := `
		INSERT INTO player_period_stats (
			period_id, player_name_raw, team_code, full_name, external_id,
			position, mlb_team, is_pitcher, resolution, draft_dollars, is_keeper
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (period_id, player_name_raw, team_code) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			external_id = EXCLUDED.external_id,
			position = EXCLUDED.position,
			mlb_team = COALESCE(EXCLUDED.mlb_team, player_period_stats.mlb_team),
			is_pitcher = EXCLUDED.is_pitcher,
			resolution = EXCLUDED.resolution,
			draft_dollars = COALESCE(EXCLUDED.draft_dollars, player_period_stats.draft_dollars),
			is_keeper = EXCLUDED.is_keeper,
			updated_at = NOW()
		RETURNING stat_id
	`

	var id int64
	err := r.db.DB().QueryRowContext(ctx, query,
		s.PeriodID, s.PlayerNameRaw, s.TeamCode, s.FullName, s.ExternalID,
		s.Position, s.MLBTeam, s.IsPitcher, s.Resolution, s.DraftDollars, s.IsKeeper,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting %q (%s): %w", s.PlayerNameRaw, s.TeamCode, err)
	}
	return id, nil
}

// ApplyRefresh replaces a row's stat counters. An empty mlbTeam keeps the
// stored team.
func (r *StatsRepository) ApplyRefresh(ctx context.Context, statID int64, c store.Counters, mlbTeam string, refreshedAt time.Time) error {
	query := `
		UPDATE player_period_stats SET
			at_bats = $2, hits = $3, runs = $4, home_runs = $5, rbi = $6,
			stolen_bases = $7, avg = $8,
			wins = $9, saves = $10, strikeouts = $11, innings_pitched = $12,
			earned_runs = $13, era = $14, whip = $15,
			mlb_team = COALESCE(NULLIF($16, ''), mlb_team),
			stats_refreshed_at = $17,
			updated_at = NOW()
		WHERE stat_id = $1
	`

	res, err := r.db.DB().ExecContext(ctx, query, statID,
		c.AtBats, c.Hits, c.Runs, c.HomeRuns, c.RBI, c.StolenBases, c.AVG,
		c.Wins, c.Saves, c.Strikeouts, c.InningsPitched, c.EarnedRuns, c.ERA, c.WHIP,
		mlbTeam, refreshedAt,
	)
	if err != nil {
		return fmt.Errorf("applying refresh to stat %d: %w", statID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("stat %d: %w", statID, store.ErrNotFound)
	}
	return nil
}

// ListByPeriod returns a period's rows ordered by team and raw name
func (r *StatsRepository) ListByPeriod(ctx context.Context, periodID int) ([]store.PlayerPeriodStat, error) {
	query := `SELECT ` + statColumns + `
		FROM player_period_stats
		WHERE period_id = $1
		ORDER BY team_code, player_name_raw
	`
	return r.query(ctx, query, periodID)
}

// ListHistory returns the latest resolved row for every raw name, oldest
// first, so that later rows supersede earlier ones when folded into a
// knowledge base.
func (r *StatsRepository) ListHistory(ctx context.Context) ([]store.PlayerPeriodStat, error) {
	query := `
		SELECT ` + statColumns + ` FROM (
			SELECT DISTINCT ON (player_name_raw) *
			FROM player_period_stats
			WHERE external_id IS NOT NULL AND external_id <> ''
			ORDER BY player_name_raw, updated_at DESC
		) latest
		ORDER BY updated_at, stat_id
	`
	return r.query(ctx, query)
}

// ListUnresolved returns a season's unresolved and ambiguous rows
func (r *StatsRepository) ListUnresolved(ctx context.Context, seasonYear int) ([]store.PlayerPeriodStat, error) {
	query := `SELECT ` + prefixed("pps", statColumns) + `
		FROM player_period_stats pps
		JOIN periods p ON p.period_id = pps.period_id
		JOIN seasons s ON s.season_id = p.season_id
		WHERE s.year = $1 AND pps.resolution IN ('unresolved', 'ambiguous')
		ORDER BY p.number, pps.team_code, pps.player_name_raw
	`
	return r.query(ctx, query, seasonYear)
}

func (r *StatsRepository) query(ctx context.Context, query string, args ...interface{}) ([]store.PlayerPeriodStat, error) {
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying player stats: %w", err)
	}
	defer rows.Close()

	var out []store.PlayerPeriodStat
	for rows.Next() {
		var s store.PlayerPeriodStat
		if err := scanStat(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning player stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStat(row scanner, s *store.PlayerPeriodStat) error {
	return row.Scan(
		&s.StatID, &s.PeriodID, &s.PlayerNameRaw, &s.TeamCode, &s.FullName, &s.ExternalID,
		&s.Position, &s.MLBTeam, &s.IsPitcher, &s.Resolution,
		&s.AtBats, &s.Hits, &s.Runs, &s.HomeRuns, &s.RBI, &s.StolenBases, &s.AVG,
		&s.Wins, &s.Saves, &s.Strikeouts, &s.InningsPitched, &s.EarnedRuns, &s.ERA, &s.WHIP,
		&s.DraftDollars, &s.IsKeeper, &s.StatsRefreshedAt, &s.CreatedAt, &s.UpdatedAt,
	)
}
