package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Mike-mible/cjic/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signup(role models.Role) RegisterInput {
	return RegisterInput{
		Name:     "Sam Okafor",
		Email:    "Sam@Example.com",
		Password: "secret1",
		Role:     role,
	}
}

func TestRegister_InitialStatusFollowsPolicy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	foreman, err := e.users.Register(ctx, signup(models.RoleForeman))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, foreman.Status)
	assert.Equal(t, "sam@example.com", foreman.Email)

	in := signup(models.RoleSiteEngineer)
	in.Email = "eng@example.com"
	engineer, err := e.users.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, engineer.Status)
}

func TestRegister_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	weak := signup(models.RoleForeman)
	weak.Password = "12345"
	_, err := e.users.Register(ctx, weak)
	assert.ErrorIs(t, err, ErrWeakCredential)

	// bcrypt refuses anything past 72 bytes
	long := signup(models.RoleForeman)
	long.Password = strings.Repeat("a", 73)
	_, err = e.users.Register(ctx, long)
	assert.ErrorIs(t, err, ErrWeakCredential)
	long.Password = strings.Repeat("a", 72)
	long.Email = "max@example.com"
	_, err = e.users.Register(ctx, long)
	assert.NoError(t, err)

	_, err = e.users.Register(ctx, signup(models.RoleSuperAdmin))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.users.Register(ctx, signup("PILOT"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	noName := signup(models.RoleForeman)
	noName.Name = " "
	_, err = e.users.Register(ctx, noName)
	assert.ErrorIs(t, err, ErrInvalidInput)

	badSite := signup(models.RoleForeman)
	badSite.SiteID = "nowhere"
	_, err = e.users.Register(ctx, badSite)
	assert.ErrorIs(t, err, ErrMissingSite)

	_, err = e.users.Register(ctx, signup(models.RoleForeman))
	require.NoError(t, err)
	_, err = e.users.Register(ctx, signup(models.RoleArchitect))
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestRegister_CompensatesWhenProfileWriteFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// the credential write succeeds, then the profile write fails
	in := signup(models.RoleForeman)
	failing := &failOnCreateUser{Store: e.store, err: errors.New("connection reset")}
	e.deps.Store = failing
	users := NewUserService(e.deps, &fakeIssuer{})

	_, err := users.Register(ctx, in)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = e.store.GetCredentialByEmail(ctx, in.Email)
	assert.Error(t, err, "credential should have been removed")

	// a retry with the same email now succeeds
	_, err = e.users.Register(ctx, in)
	assert.NoError(t, err)
}

func TestCreateAccount_AdminOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "ada", models.RoleAdmin, models.StatusActive)
	foreman := e.seedUser(t, "fay", models.RoleForeman, models.StatusActive)

	in := signup(models.RoleAdminManager)
	u, err := e.users.CreateAccount(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdminManager, u.Role)
	assert.Equal(t, models.StatusActive, u.Status)

	in.Email = "other@example.com"
	_, err = e.users.CreateAccount(ctx, foreman, in)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.users.Register(ctx, signup(models.RoleForeman))
	require.NoError(t, err)

	session, err := e.users.Authenticate(ctx, " SAM@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.TokenID)
	require.NotNil(t, session.User)
	require.NotNil(t, session.User.LastActive)
	assert.Equal(t, testNow, *session.User.LastActive)

	_, err = e.users.Authenticate(ctx, "sam@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = e.users.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_ProfileMissingStillIssuesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := signup(models.RoleForeman)
	u, err := e.users.Register(ctx, in)
	require.NoError(t, err)

	// drop just the profile, keeping the credential
	cred, err := e.store.GetCredentialByEmail(ctx, in.Email)
	require.NoError(t, err)
	require.NoError(t, e.store.DeleteCredential(ctx, u.ID))
	require.NoError(t, e.store.CreateCredential(ctx, cred))

	session, err := e.users.Authenticate(ctx, in.Email, in.Password)
	assert.ErrorIs(t, err, ErrProfileMissing)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Token)
	assert.Nil(t, session.User)
}

func TestProfile(t *testing.T) {
	e := newEnv(t)
	_, err := e.users.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProfileMissing)
}

func TestSetStatus_Transitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "ada", models.RoleSuperAdmin, models.StatusActive)
	pending := e.seedUser(t, "pat", models.RoleForeman, models.StatusPending)

	u, err := e.users.SetStatus(ctx, admin, pending.ID, models.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, u.Status)

	u, err = e.users.SetStatus(ctx, admin, pending.ID, models.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, u.Status)

	_, err = e.users.SetStatus(ctx, admin, pending.ID, models.StatusPending)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = e.users.SetStatus(ctx, admin, admin.ID, models.StatusSuspended)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.users.SetStatus(ctx, pending, admin.ID, models.StatusSuspended)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.users.SetStatus(ctx, admin, "missing", models.StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.users.SetStatus(ctx, admin, pending.ID, "GONE")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetStatus_RejectedIsTerminal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "ada", models.RoleAdmin, models.StatusActive)
	u := e.seedUser(t, "ron", models.RoleForeman, models.StatusPending)

	_, err := e.users.SetStatus(ctx, admin, u.ID, models.StatusRejected)
	require.NoError(t, err)
	for _, to := range []models.UserStatus{models.StatusActive, models.StatusPending, models.StatusSuspended} {
		_, err := e.users.SetStatus(ctx, admin, u.ID, to)
		assert.ErrorIs(t, err, ErrIllegalTransition, "REJECTED -> %s", to)
	}
}

func TestSetStatus_StoreFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "ada", models.RoleAdmin, models.StatusActive)
	u := e.seedUser(t, "pat", models.RoleForeman, models.StatusPending)

	e.store.FailNext = errors.New("disk full")
	_, err := e.users.SetStatus(ctx, admin, u.ID, models.StatusActive)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestCompleteOnboarding(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	engineer := e.seedUser(t, "eve", models.RoleSiteEngineer, models.StatusPending)
	foreman := e.seedUser(t, "fay", models.RoleForeman, models.StatusPending)

	in := OnboardingInput{Phone: "555-0100", SiteID: e.site.ID, Bio: "Structural"}
	u, err := e.users.CompleteOnboarding(ctx, engineer.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, u.Status)
	require.NotNil(t, u.OnboardedAt)

	again, err := e.users.CompleteOnboarding(ctx, engineer.ID, in)
	require.NoError(t, err)
	assert.Equal(t, *u.OnboardedAt, *again.OnboardedAt)
	assert.Equal(t, u.SiteID, again.SiteID)
	assert.Equal(t, u.Status, again.Status)

	f, err := e.users.CompleteOnboarding(ctx, foreman.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, f.Status)

	_, err = e.users.CompleteOnboarding(ctx, foreman.ID, OnboardingInput{SiteID: "nowhere"})
	assert.ErrorIs(t, err, ErrMissingSite)

	_, err = e.users.CompleteOnboarding(ctx, foreman.ID, OnboardingInput{Password: "123"})
	assert.ErrorIs(t, err, ErrWeakCredential)

	_, err = e.users.CompleteOnboarding(ctx, foreman.ID, OnboardingInput{Password: strings.Repeat("x", 100)})
	assert.ErrorIs(t, err, ErrWeakCredential)

	_, err = e.users.CompleteOnboarding(ctx, "missing", in)
	assert.ErrorIs(t, err, ErrProfileMissing)
}

func TestCompleteOnboarding_UpdatesPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := signup(models.RoleForeman)
	u, err := e.users.Register(ctx, in)
	require.NoError(t, err)

	_, err = e.users.CompleteOnboarding(ctx, u.ID, OnboardingInput{Password: "new-secret"})
	require.NoError(t, err)

	_, err = e.users.Authenticate(ctx, in.Email, "new-secret")
	assert.NoError(t, err)
	_, err = e.users.Authenticate(ctx, in.Email, in.Password)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestList_OrderedByCreation(t *testing.T) {
	e := newEnv(t)
	first := e.seedUser(t, "a", models.RoleForeman, models.StatusActive)
	e.seedUser(t, "b", models.RoleForeman, models.StatusActive)

	users, err := e.users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)
}

type failOnCreateUser struct {
	Store
	err error
}

func (f *failOnCreateUser) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	return nil, f.err
}
