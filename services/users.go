package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt rejects input longer than 72 bytes.
	maxPasswordLength = 72
)

// hashPassword enforces the length bounds and hashes the password.
func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakCredential
	}
	if len(password) > maxPasswordLength {
		return "", fmt.Errorf("%w: at most %d bytes are allowed", ErrWeakCredential, maxPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// TokenIssuer signs session tokens for an identity.
type TokenIssuer interface {
	Issue(identityID string) (token, tokenID string, expiresAt time.Time, err error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Phone    string
	SiteID   string
}

type OnboardingInput struct {
	Phone    string
	Avatar   string
	SiteID   string
	Bio      string
	Password string
}

// Session is the result of a successful login. User is nil when the
// credential has no profile yet.
type Session struct {
	Token     string       `json:"token"`
	TokenID   string       `json:"-"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user,omitempty"`
}

type UserService struct {
	base
	tokens TokenIssuer
}

func NewUserService(d Deps, tokens TokenIssuer) *UserService {
	return &UserService{base: newBase(d), tokens: tokens}
}

// Register creates a credential and a profile for a public signup. Only
// roles on the self-service list may be requested.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if !in.Role.Valid() {
		return nil, invalid("unknown role %q", in.Role)
	}
	if !s.policy.CanSelfRegister(in.Role) {
		return nil, forbidden("role %s cannot self-register", in.Role)
	}
	return s.create(ctx, in)
}

// CreateAccount is the administrator path. Any role may be created.
func (s *UserService) CreateAccount(ctx context.Context, actor *models.User, in RegisterInput) (*models.User, error) {
	if err := s.require(actor, models.CapManageUsers); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, invalid("unknown role %q", in.Role)
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account created by administrator", "user_id", u.ID, "role", u.Role, "actor_id", actor.ID)
	return u, nil
}

func (s *UserService) create(ctx context.Context, in RegisterInput) (*models.User, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, invalid("name and email are required")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	user, err := models.NewUser(id, in.Name, in.Email, in.Phone, in.SiteID, in.Role, s.policy.InitialStatus(in.Role))
	if err != nil {
		return nil, invalid("%s", err)
	}
	cred := &models.Credential{ID: id, Email: user.Email, PasswordHash: hash, CreatedAt: user.CreatedAt}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if user.SiteID != nil {
		if err := s.siteExists(sctx, *user.SiteID); err != nil {
			return nil, err
		}
	}
	if err := s.store.CreateCredential(sctx, cred); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, storeError(err)
	}

	created, err := s.store.CreateUser(sctx, user)
	if err != nil {
		s.compensate(ctx, id)
		switch {
		case errors.Is(err, database.ErrDuplicate):
			return nil, ErrDuplicateAccount
		case errors.Is(err, database.ErrMissingReference):
			return nil, ErrMissingSite
		}
		return nil, storeError(err)
	}

	s.log.Info(ctx, "user registered", "user_id", created.ID, "role", created.Role, "status", created.Status)
	return created, nil
}

// compensate removes a credential whose profile could not be written, so a
// retry with the same email is not blocked.
func (s *UserService) compensate(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.store.DeleteCredential(cctx, id); err != nil {
		s.log.Error(ctx, "credential compensation failed", "user_id", id, "error", err)
		return
	}
	s.log.Warn(ctx, "credential removed after profile write failed", "user_id", id)
}

func (s *UserService) siteExists(ctx context.Context, siteID string) error {
	if _, err := s.store.GetSite(ctx, siteID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrMissingSite
		}
		return storeError(err)
	}
	return nil
}

// Authenticate checks a password and issues a token. When the credential is
// valid but has no profile, the session is returned with ErrProfileMissing.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cred, err := s.store.GetCredentialByEmail(sctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, storeError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, jti, exp, err := s.tokens.Issue(cred.ID)
	if err != nil {
		return nil, err
	}
	session := &Session{Token: token, TokenID: jti, ExpiresAt: exp}

	user, err := s.store.GetUser(sctx, cred.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return session, ErrProfileMissing
		}
		return nil, storeError(err)
	}

	now := s.now()
	if err := s.store.TouchLastActive(sctx, user.ID, now); err != nil {
		s.log.Warn(ctx, "failed to record last activity", "user_id", user.ID, "error", err)
	} else {
		user.LastActive = &now
	}
	session.User = user
	return session, nil
}

func (s *UserService) Profile(ctx context.Context, id string) (*models.User, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.store.GetUser(sctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, storeError(err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := s.store.ListUsers(sctx)
	if err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

// SetStatus applies an administrator status change. The write only lands if
// the profile is still in the status that was checked, so concurrent changes
// cannot both succeed.
func (s *UserService) SetStatus(ctx context.Context, actor *models.User, userID string, status models.UserStatus) (*models.User, error) {
	if err := s.require(actor, models.CapManageUsers); err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return nil, forbidden("administrators cannot change their own status")
	}
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.store.GetUser(sctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	if !models.UserTransitionAllowed(current.Status, status) {
		return nil, ErrIllegalTransition
	}

	if err := s.store.UpdateUserStatus(sctx, userID, current.Status, status); err != nil {
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, ErrIllegalTransition
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}

	updated, err := s.store.GetUser(sctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	s.log.Info(ctx, "user status changed",
		"user_id", userID, "from", current.Status, "to", updated.Status, "actor_id", actor.ID)
	return updated, nil
}

// CompleteOnboarding fills in profile details. Roles that activate on
// signup leave PENDING here; roles that need approval stay where they are.
func (s *UserService) CompleteOnboarding(ctx context.Context, userID string, in OnboardingInput) (*models.User, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.store.GetUser(sctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, storeError(err)
	}

	siteID := strings.TrimSpace(in.SiteID)
	if siteID != "" {
		if err := s.siteExists(sctx, siteID); err != nil {
			return nil, err
		}
	}

	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		if err := s.store.UpdatePassword(sctx, userID, hash); err != nil {
			return nil, storeError(err)
		}
	}

	fields := database.OnboardingFields{
		Phone:  strings.TrimSpace(in.Phone),
		Avatar: strings.TrimSpace(in.Avatar),
		SiteID: siteID,
		Bio:    strings.TrimSpace(in.Bio),
	}
	updated, err := s.store.CompleteOnboarding(sctx, userID, fields, s.policy.AutoActivates(current.Role))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrMissingReference):
			return nil, ErrMissingSite
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrProfileMissing
		}
		return nil, storeError(err)
	}

	if updated.Status != current.Status {
		s.log.Info(ctx, "onboarding activated user", "user_id", userID, "role", updated.Role)
	}
	return updated, nil
}
