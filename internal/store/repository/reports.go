package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/almanac/internal/store"
)

// ReportRepository stores identity reports for names that need review
type ReportRepository struct {
	db *store.Database
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *store.Database) *ReportRepository {
	return &ReportRepository{db: db}
}

// Upsert records or reopens the report for (period, raw name, team code)
func (r *ReportRepository) Upsert(ctx context.Context, rep *store.IdentityReport) error {
	candidates := rep.Candidates
	if len(candidates) == 0 {
		candidates = []byte("[]")
	}

	query := `
		INSERT INTO identity_reports (period_id, player_name_raw, team_code, status, candidates, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_id, player_name_raw, team_code) DO UPDATE SET
			status = EXCLUDED.status,
			candidates = EXCLUDED.candidates,
			note = EXCLUDED.note,
			resolved = FALSE,
			updated_at = NOW()
	`
	_, err := r.db.DB().ExecContext(ctx, query,
		rep.PeriodID, rep.PlayerNameRaw, rep.TeamCode, rep.Status, string(candidates), rep.Note,
	)
	if err != nil {
		return fmt.Errorf("upserting identity report for %q: %w", rep.PlayerNameRaw, err)
	}
	return nil
}

// MarkResolved closes the report for a key, if one exists
func (r *ReportRepository) MarkResolved(ctx context.Context, periodID int, nameRaw, teamCode string) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE identity_reports
		SET resolved = TRUE, updated_at = NOW()
		WHERE period_id = $1 AND player_name_raw = $2 AND team_code = $3 AND NOT resolved
	`, periodID, nameRaw, teamCode)
	if err != nil {
		return fmt.Errorf("resolving identity report for %q: %w", nameRaw, err)
	}
	return nil
}

// ListOpen returns unresolved reports, newest first
func (r *ReportRepository) ListOpen(ctx context.Context, limit int) ([]*store.IdentityReport, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT report_id, period_id, player_name_raw, team_code, status,
			candidates, note, resolved, created_at, updated_at
		FROM identity_reports
		WHERE NOT resolved
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying identity reports: %w", err)
	}
	defer rows.Close()

	var reports []*store.IdentityReport
	for rows.Next() {
		rep := &store.IdentityReport{}
		var candidates []byte
		if err := rows.Scan(
			&rep.ReportID, &rep.PeriodID, &rep.PlayerNameRaw, &rep.TeamCode, &rep.Status,
			&candidates, &rep.Note, &rep.Resolved, &rep.CreatedAt, &rep.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning identity report: %w", err)
		}
		rep.Candidates = candidates
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
