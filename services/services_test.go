package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Mike-mible/cjic/cache"
	"github.com/Mike-mible/cjic/database/memory"
	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/policy"
	"github.com/stretchr/testify/require"
)

var _ Store = (*memory.Store)(nil)

var testNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

type fakeIssuer struct {
	n int
}

func (f *fakeIssuer) Issue(identityID string) (string, string, time.Time, error) {
	f.n++
	return "token-" + identityID, fmt.Sprintf("jti-%d", f.n), testNow.Add(time.Hour), nil
}

type env struct {
	store    *memory.Store
	deps     Deps
	drafts   *DraftService
	users    *UserService
	logs     *SiteLogService
	sessions *SessionService
	site     models.Site
}

func newEnv(t *testing.T) *env {
	t.Helper()
	p, err := policy.New(policy.Default())
	require.NoError(t, err)

	store := memory.New()
	site := models.Site{ID: "site-1", Name: "North Tower", Progress: 40, Budget: 1000, Spent: 400, CreatedAt: testNow}
	store.AddSite(site)

	d := Deps{
		Store:   store,
		Policy:  p,
		Logger:  logging.Discard(),
		Timeout: time.Second,
		Now:     func() time.Time { return testNow },
	}
	drafts := NewDraftService(cache.NewMemoryDrafts(time.Hour), logging.Discard())
	return &env{
		store:    store,
		deps:     d,
		drafts:   drafts,
		users:    NewUserService(d, &fakeIssuer{}),
		logs:     NewSiteLogService(d, drafts),
		sessions: NewSessionService(d, cache.NewMemoryRevoker()),
		site:     site,
	}
}

// seedUser creates an account with the given role and status directly.
func (e *env) seedUser(t *testing.T, name string, role models.Role, status models.UserStatus) *models.User {
	t.Helper()
	ctx := context.Background()
	id := "id-" + name
	email := name + "@example.com"
	require.NoError(t, e.store.CreateCredential(ctx, &models.Credential{ID: id, Email: email}))
	u, err := models.NewUser(id, name, email, "", "", role, status)
	require.NoError(t, err)
	created, err := e.store.CreateUser(ctx, u)
	require.NoError(t, err)
	return created
}
