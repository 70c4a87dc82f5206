package services

import (
	"context"
	"errors"
	"time"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/models"
)

// TokenRevoker remembers logged-out token ids until they would have expired.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

const (
	ActionRetry   = "retry"
	ActionSignOut = "sign-out"
)

// SessionService derives the navigation route for a caller. Routes are
// computed from the stored profile on every call and never cached.
type SessionService struct {
	base
	revoker TokenRevoker
}

func NewSessionService(d Deps, revoker TokenRevoker) *SessionService {
	return &SessionService{base: newBase(d), revoker: revoker}
}

// Resolve returns the route for identityID. When impersonate names another
// user, the caller must hold manage-users and the route is resolved for
// that user's stored profile instead.
func (s *SessionService) Resolve(ctx context.Context, identityID, impersonate string) (models.Route, error) {
	if identityID == "" {
		return models.Route{Screen: models.ScreenUnauthenticated, Capabilities: []models.Capability{}}, nil
	}
	if impersonate == "" || impersonate == identityID {
		return s.routeFor(ctx, identityID), nil
	}

	caller := s.routeFor(ctx, identityID)
	if caller.Screen != models.ScreenActiveDashboard || !s.policy.Has(caller.User.Role, models.CapManageUsers) {
		return models.Route{}, forbidden("impersonation requires manage-users")
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.store.GetUser(sctx, impersonate); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Route{}, ErrNotFound
		}
		return models.Route{}, storeError(err)
	}

	route := s.routeFor(ctx, impersonate)
	route.ImpersonatedBy = identityID
	s.log.Info(ctx, "session impersonated", "actor_id", identityID, "target_id", impersonate)
	return route, nil
}

func (s *SessionService) routeFor(ctx context.Context, identityID string) models.Route {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.GetUser(sctx, identityID)
	if err != nil {
		route := models.Route{
			Screen:       models.ScreenNoProfile,
			Capabilities: []models.Capability{},
			Actions:      []string{ActionRetry, ActionSignOut},
		}
		if errors.Is(err, database.ErrNotFound) {
			route.Error = ErrProfileMissing.Error()
		} else {
			s.log.Warn(ctx, "profile fetch failed during routing", "user_id", identityID, "error", err)
			route.Error = storeError(err).Error()
		}
		return route
	}

	route := models.Route{User: user, Capabilities: []models.Capability{}}
	switch user.Status {
	case models.StatusActive:
		route.Screen = models.ScreenActiveDashboard
		route.View = s.policy.View(user.Role)
		route.Capabilities = s.policy.Capabilities(user.Role)
	case models.StatusPending:
		route.Screen = models.ScreenPendingApproval
	default:
		route.Screen = models.ScreenRevoked
	}
	return route
}

// Logout revokes the token id until its natural expiry.
func (s *SessionService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return invalid("token has no id")
	}
	if !expiresAt.After(s.now()) {
		return nil
	}
	if err := s.revoker.Revoke(ctx, tokenID, expiresAt); err != nil {
		return storeError(err)
	}
	s.log.Info(ctx, "session revoked", "token_id", tokenID)
	return nil
}

// IsRevoked reports whether a token id was logged out.
func (s *SessionService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	revoked, err := s.revoker.Revoked(ctx, tokenID)
	if err != nil {
		return false, storeError(err)
	}
	return revoked, nil
}
