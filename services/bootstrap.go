package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/models"
	"github.com/google/uuid"
)

type BootstrapInput struct {
	Site  models.SiteCreate `json:"site"`
	Admin struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"admin"`
}

// BootstrapService initializes an empty installation with its first site
// and super administrator.
type BootstrapService struct {
	base
}

func NewBootstrapService(d Deps) *BootstrapService {
	return &BootstrapService{base: newBase(d)}
}

// Required reports whether the store is still empty.
func (s *BootstrapService) Required(ctx context.Context) (bool, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	need, err := s.store.NeedsBootstrap(sctx)
	if err != nil {
		return false, storeError(err)
	}
	return need, nil
}

func (s *BootstrapService) Run(ctx context.Context, in BootstrapInput) (*models.Site, *models.User, error) {
	if strings.TrimSpace(in.Admin.Name) == "" || strings.TrimSpace(in.Admin.Email) == "" {
		return nil, nil, invalid("administrator name and email are required")
	}
	site, err := models.NewSite(in.Site.Name, in.Site.Location, in.Site.Budget)
	if err != nil {
		return nil, nil, invalid("%s", err)
	}

	hash, err := hashPassword(in.Admin.Password)
	if err != nil {
		return nil, nil, err
	}
	id := uuid.New().String()
	admin, err := models.NewUser(id, in.Admin.Name, in.Admin.Email, "", site.ID, models.RoleSuperAdmin, models.StatusActive)
	if err != nil {
		return nil, nil, invalid("%s", err)
	}
	cred := &models.Credential{ID: id, Email: admin.Email, PasswordHash: hash, CreatedAt: admin.CreatedAt}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	createdSite, createdAdmin, err := s.store.Bootstrap(sctx, site, cred, admin)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, nil, ErrAlreadyBootstrapped
		}
		return nil, nil, storeError(err)
	}

	s.log.Info(ctx, "system bootstrapped", "site_id", createdSite.ID, "admin_id", createdAdmin.ID)
	return createdSite, createdAdmin, nil
}
