package database

import (
	"context"
	"time"

	"github.com/Mike-mible/cjic/models"
)

func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) error {
	const query = `
		INSERT INTO credentials (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Email, c.PasswordHash, c.CreatedAt)
	return mapError(err)
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM credentials
		WHERE email = LOWER($1)
	`
	var c models.Credential
	err := s.db.QueryRowContext(ctx, query, email).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	return mapError(err)
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE credentials SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// CreateUser inserts a profile keyed by its credential id. Repeating the
// insert for the same id returns the existing row instead of failing.
func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	return createUser(ctx, s.db, u)
}

func createUser(ctx context.Context, db DBTX, u *models.User) (*models.User, error) {
	const query = `
		INSERT INTO users (id, name, email, phone, role, site_id, status, avatar, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, toNullString(u.Phone), string(u.Role), toNullString(u.SiteID),
		string(u.Status), toNullString(u.Avatar), toNullString(u.Bio), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return getUser(ctx, db, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, db DBTX, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var r userRow
	if err := db.QueryRowContext(ctx, query, id).Scan(r.dest()...); err != nil {
		return nil, mapError(err)
	}
	return r.toModel(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var r userRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, mapError(err)
		}
		users = append(users, *r.toModel())
	}
	return users, mapError(rows.Err())
}

// UpdateUserStatus moves a profile from one status to another only if it is
// still in the expected state. It returns ErrConflict otherwise.
func (s *Store) UpdateUserStatus(ctx context.Context, id string, from, to models.UserStatus) error {
	const query = `
		UPDATE users
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// OnboardingFields are the profile fields a user fills in after signup.
// Empty values leave the stored value untouched.
type OnboardingFields struct {
	Phone  string
	Avatar string
	SiteID string
	Bio    string
}

// CompleteOnboarding fills the profile and, when promote is set, moves a
// PENDING profile to ACTIVE. onboarded_at keeps its first value.
func (s *Store) CompleteOnboarding(ctx context.Context, id string, f OnboardingFields, promote bool) (*models.User, error) {
	const query = `
		UPDATE users SET
			phone = COALESCE(NULLIF($2, ''), phone),
			avatar = COALESCE(NULLIF($3, ''), avatar),
			site_id = COALESCE(NULLIF($4, '')::uuid, site_id),
			bio = COALESCE(NULLIF($5, ''), bio),
			onboarded_at = COALESCE(onboarded_at, NOW()),
			status = CASE WHEN $6::boolean AND status = 'PENDING' THEN 'ACTIVE' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, f.Phone, f.Avatar, f.SiteID, f.Bio, promote)
	if err != nil {
		return nil, mapError(err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_active = $2 WHERE id = $1`, id, at)
	return mapError(err)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireRow(res rowsAffected) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
