package database

import (
	"context"

	"github.com/Mike-mible/cjic/models"
	"github.com/lib/pq"
)

// CreateSafetyReport appends a report. There is no update or delete
// counterpart, and a table trigger rejects both.
func (s *Store) CreateSafetyReport(ctx context.Context, r *models.SafetyReport) (*models.SafetyReport, error) {
	query := `
		INSERT INTO safety_reports (id, date, site_id, author_id, hazard_level, ppe_compliance,
			observations, action_required, photos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + safetyReportColumns

	var row safetyReportRow
	err := s.db.QueryRowContext(ctx, query,
		r.ID, r.Date, r.SiteID, r.AuthorID, string(r.HazardLevel), r.PPECompliance,
		r.Observations, r.ActionRequired, pq.Array(nonNil(r.Photos)), r.Timestamp,
	).Scan(row.dest()...)
	if err != nil {
		return nil, mapError(err)
	}
	return row.toModel(), nil
}

// ListSafetyReports returns reports newest first. An empty siteID lists all
// sites.
func (s *Store) ListSafetyReports(ctx context.Context, siteID string) ([]models.SafetyReport, error) {
	query := `SELECT ` + safetyReportColumns + ` FROM safety_reports`
	var args []any
	if siteID != "" {
		query += ` WHERE site_id = $1`
		args = append(args, siteID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	reports := []models.SafetyReport{}
	for rows.Next() {
		var r safetyReportRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, mapError(err)
		}
		reports = append(reports, *r.toModel())
	}
	return reports, mapError(rows.Err())
}
