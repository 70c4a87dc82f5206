package database

import (
	"context"

	"github.com/Mike-mible/cjic/models"
)

// bootstrapLockKey serializes concurrent bootstrap attempts.
const bootstrapLockKey = 7261001

// NeedsBootstrap reports whether the store holds no users and no sites.
func (s *Store) NeedsBootstrap(ctx context.Context) (bool, error) {
	return needsBootstrap(ctx, s.db)
}

func needsBootstrap(ctx context.Context, db DBTX) (bool, error) {
	var empty bool
	err := db.QueryRowContext(ctx,
		`SELECT NOT EXISTS(SELECT 1 FROM users) AND NOT EXISTS(SELECT 1 FROM sites)`,
	).Scan(&empty)
	if err != nil {
		return false, mapError(err)
	}
	return empty, nil
}

// Bootstrap creates the first site and administrator in one transaction.
// It returns ErrConflict if anything already exists.
func (s *Store) Bootstrap(ctx context.Context, site *models.Site, cred *models.Credential, admin *models.User) (*models.Site, *models.User, error) {
	var created *models.User
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return mapError(err)
		}
		empty, err := needsBootstrap(ctx, tx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrConflict
		}
		if err := createSite(ctx, tx, site); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO credentials (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
			cred.ID, cred.Email, cred.PasswordHash, cred.CreatedAt)
		if err != nil {
			return mapError(err)
		}
		created, err = createUser(ctx, tx, admin)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return site, created, nil
}
