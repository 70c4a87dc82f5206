package services

import (
	"context"
	"time"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/policy"
)

// Store is everything the services need from persistence. database.Store
// and memory.Store both satisfy it.
type Store interface {
	CreateCredential(ctx context.Context, c *models.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	DeleteCredential(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string) error

	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserStatus(ctx context.Context, id string, from, to models.UserStatus) error
	CompleteOnboarding(ctx context.Context, id string, f database.OnboardingFields, promote bool) (*models.User, error)
	TouchLastActive(ctx context.Context, id string, at time.Time) error

	ListSites(ctx context.Context) ([]models.Site, error)
	GetSite(ctx context.Context, id string) (*models.Site, error)

	CreateSiteLog(ctx context.Context, l *models.SiteLog) (*models.SiteLog, error)
	GetSiteLog(ctx context.Context, id string) (*models.SiteLog, error)
	ListSiteLogs(ctx context.Context, f models.SiteLogFilter) ([]models.SiteLog, error)
	ReviewSiteLog(ctx context.Context, id string, decision models.LogStatus, feedback, reviewerID string) (*models.SiteLog, error)
	TransitionSiteLog(ctx context.Context, id string, from, to models.LogStatus, authorID string) (*models.SiteLog, error)
	UpdateSiteLogDraft(ctx context.Context, l *models.SiteLog) (*models.SiteLog, error)

	CreateSafetyReport(ctx context.Context, r *models.SafetyReport) (*models.SafetyReport, error)
	ListSafetyReports(ctx context.Context, siteID string) ([]models.SafetyReport, error)

	NeedsBootstrap(ctx context.Context) (bool, error)
	Bootstrap(ctx context.Context, site *models.Site, cred *models.Credential, admin *models.User) (*models.Site, *models.User, error)
}

var (
	_ Store = (*database.Store)(nil)
)

// DefaultTimeout bounds every store call when Deps.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Deps are the collaborators shared by every service.
type Deps struct {
	Store   Store
	Policy  *policy.Policy
	Logger  logging.Logger
	Timeout time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

type base struct {
	store   Store
	policy  *policy.Policy
	log     logging.Logger
	timeout time.Duration
	now     func() time.Time
}

func newBase(d Deps) base {
	b := base{
		store:   d.Store,
		policy:  d.Policy,
		log:     d.Logger,
		timeout: d.Timeout,
		now:     d.Now,
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	if b.log == nil {
		b.log = logging.Discard()
	}
	return b
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// require fails with ErrForbidden unless the actor's stored role holds c.
func (b *base) require(actor *models.User, c models.Capability) error {
	if actor == nil || !b.policy.Has(actor.Role, c) {
		return forbidden("requires %s", c)
	}
	return nil
}
