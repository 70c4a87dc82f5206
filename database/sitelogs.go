package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Mike-mible/cjic/models"
	"github.com/lib/pq"
)

func (s *Store) CreateSiteLog(ctx context.Context, l *models.SiteLog) (*models.SiteLog, error) {
	args, err := siteLogArgs(l)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO site_logs (id, date, shift, site_id, block_name, foreman_name, author_id, status,
			workers_count, work_completed, material_usage, equipment_usage, incidents, photos,
			engineer_feedback, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + siteLogColumns
	return scanSiteLog(s.db.QueryRowContext(ctx, query, args...))
}

func (s *Store) GetSiteLog(ctx context.Context, id string) (*models.SiteLog, error) {
	query := `SELECT ` + siteLogColumns + ` FROM site_logs WHERE id = $1`
	return scanSiteLog(s.db.QueryRowContext(ctx, query, id))
}

// ListSiteLogs returns logs newest first, optionally narrowed by site and
// status.
func (s *Store) ListSiteLogs(ctx context.Context, f models.SiteLogFilter) ([]models.SiteLog, error) {
	var (
		where []string
		args  []any
	)
	if f.SiteID != "" {
		args = append(args, f.SiteID)
		where = append(where, fmt.Sprintf("site_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + siteLogColumns + ` FROM site_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	logs := []models.SiteLog{}
	for rows.Next() {
		var r siteLogRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, mapError(err)
		}
		l, err := r.toModel()
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, mapError(rows.Err())
}

// ReviewSiteLog records a decision on a SUBMITTED log in one conditional
// statement, so of two concurrent reviewers only one can match the row.
func (s *Store) ReviewSiteLog(ctx context.Context, id string, decision models.LogStatus, feedback, reviewerID string) (*models.SiteLog, error) {
	query := `
		UPDATE site_logs
		SET status = $2, engineer_feedback = $3, reviewed_by = $4, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'SUBMITTED'
		RETURNING ` + siteLogColumns
	l, err := scanSiteLog(s.db.QueryRowContext(ctx, query, id, string(decision), feedback, reviewerID))
	if errors.Is(err, ErrNotFound) {
		return nil, s.conflictOrMissing(ctx, id)
	}
	return l, err
}

// TransitionSiteLog moves a log owned by authorID from one status to
// another. Review decisions go through ReviewSiteLog instead.
func (s *Store) TransitionSiteLog(ctx context.Context, id string, from, to models.LogStatus, authorID string) (*models.SiteLog, error) {
	query := `
		UPDATE site_logs
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND author_id = $4
		RETURNING ` + siteLogColumns
	l, err := scanSiteLog(s.db.QueryRowContext(ctx, query, id, string(from), string(to), authorID))
	if errors.Is(err, ErrNotFound) {
		return nil, s.conflictOrMissing(ctx, id)
	}
	return l, err
}

// UpdateSiteLogDraft rewrites the editable fields of a DRAFT log owned by
// the author. The status does not change.
func (s *Store) UpdateSiteLogDraft(ctx context.Context, l *models.SiteLog) (*models.SiteLog, error) {
	materials, err := json.Marshal(nonNil(l.MaterialUsage))
	if err != nil {
		return nil, fmt.Errorf("encode material_usage: %w", err)
	}
	equipment, err := json.Marshal(nonNil(l.EquipmentUsage))
	if err != nil {
		return nil, fmt.Errorf("encode equipment_usage: %w", err)
	}
	query := `
		UPDATE site_logs SET
			date = $3, shift = $4, site_id = $5, block_name = $6, foreman_name = $7,
			workers_count = $8, work_completed = $9, material_usage = $10, equipment_usage = $11,
			incidents = $12, photos = $13, updated_at = NOW()
		WHERE id = $1 AND author_id = $2 AND status = 'DRAFT'
		RETURNING ` + siteLogColumns
	updated, err := scanSiteLog(s.db.QueryRowContext(ctx, query,
		l.ID, l.AuthorID, l.Date, string(l.Shift), l.SiteID, l.BlockName, l.ForemanName,
		l.WorkersCount, l.WorkCompleted, string(materials), string(equipment), l.Incidents, pq.Array(nonNil(l.Photos)),
	))
	if errors.Is(err, ErrNotFound) {
		return nil, s.conflictOrMissing(ctx, l.ID)
	}
	return updated, err
}

func (s *Store) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM site_logs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSiteLog(row rowScanner) (*models.SiteLog, error) {
	var r siteLogRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, mapError(err)
	}
	return r.toModel()
}
