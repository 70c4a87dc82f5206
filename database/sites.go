package database

import (
	"context"

	"github.com/Mike-mible/cjic/models"
)

func (s *Store) ListSites(ctx context.Context) ([]models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sites := []models.Site{}
	for rows.Next() {
		var r siteRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, mapError(err)
		}
		sites = append(sites, *r.toModel())
	}
	return sites, mapError(rows.Err())
}

func (s *Store) GetSite(ctx context.Context, id string) (*models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`
	var r siteRow
	if err := s.db.QueryRowContext(ctx, query, id).Scan(r.dest()...); err != nil {
		return nil, mapError(err)
	}
	return r.toModel(), nil
}

func createSite(ctx context.Context, db DBTX, site *models.Site) error {
	const query = `
		INSERT INTO sites (id, name, location, progress, budget, spent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.ExecContext(ctx, query,
		site.ID, site.Name, site.Location, site.Progress, site.Budget, site.Spent, site.CreatedAt)
	return mapError(err)
}
