package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/models"
	"github.com/Mike-mible/cjic/policy"
	"github.com/Mike-mible/cjic/services"
)

type contextKey string

const (
	identityKey     contextKey = "identity"
	userKey         contextKey = "user"
	impersonatorKey contextKey = "impersonator"
)

// ImpersonateHeader names the user an administrator acts as.
const ImpersonateHeader = "X-Impersonate-User"

// Identity is what a verified token proves.
type Identity struct {
	ID        string
	TokenID   string
	ExpiresAt time.Time
}

type ProfileLoader interface {
	Profile(ctx context.Context, id string) (*models.User, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Authenticator struct {
	jwt      *JWTManager
	profiles ProfileLoader
	sessions RevocationChecker
	policy   *policy.Policy
	log      logging.Logger
}

func NewAuthenticator(j *JWTManager, profiles ProfileLoader, sessions RevocationChecker, p *policy.Policy, log logging.Logger) *Authenticator {
	return &Authenticator{jwt: j, profiles: profiles, sessions: sessions, policy: p, log: log}
}

// verify checks the bearer token. ok is false when no token was sent.
func (a *Authenticator) verify(r *http.Request) (id *Identity, ok bool, err error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, true, errors.New("invalid authorization format")
	}
	claims, err := a.jwt.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, true, errors.New("invalid or expired token")
	}
	revoked, err := a.sessions.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		a.log.Error(r.Context(), "revocation check failed", "error", err)
		return nil, true, errors.New("unable to verify session")
	}
	if revoked {
		return nil, true, errors.New("session has been signed out")
	}
	return &Identity{ID: claims.Subject, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, true, nil
}

// Authenticate rejects requests without a valid, unrevoked token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok, err := a.verify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Authorization header required")
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// Optional attaches the identity when a valid token is present and lets the
// request through either way.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok, err := a.verify(r); ok && err == nil {
			r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActive loads the caller's stored profile and only admits ACTIVE
// users. Holders of manage-users may act as another user by sending
// X-Impersonate-User; the target must be ACTIVE as well.
func (a *Authenticator) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
			return
		}
		user, ok := a.activeProfile(w, r, id.ID)
		if !ok {
			return
		}
		ctx := r.Context()

		if target := strings.TrimSpace(r.Header.Get(ImpersonateHeader)); target != "" && target != user.ID {
			if !a.policy.Has(user.Role, models.CapManageUsers) {
				writeError(w, http.StatusForbidden, "Forbidden", "Impersonation requires manage-users")
				return
			}
			actor := user
			if user, ok = a.activeProfile(w, r, target); !ok {
				return
			}
			a.log.Info(ctx, "request impersonated", "actor_id", actor.ID, "target_id", user.ID, "path", r.URL.Path)
			ctx = context.WithValue(ctx, impersonatorKey, actor)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userKey, user)))
	})
}

func (a *Authenticator) activeProfile(w http.ResponseWriter, r *http.Request, id string) (*models.User, bool) {
	user, err := a.profiles.Profile(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrProfileMissing):
		writeError(w, http.StatusNotFound, "ProfileMissing", err.Error())
		return nil, false
	case errors.Is(err, services.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Timeout", err.Error())
		return nil, false
	case err != nil:
		a.log.Error(r.Context(), "profile lookup failed", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Persistence", services.ErrPersistence.Error())
		return nil, false
	}
	if user.Status != models.StatusActive {
		writeError(w, http.StatusForbidden, "Forbidden", "Account is not active")
		return nil, false
	}
	return user, true
}

// RequireCapability admits users whose stored role holds c.
func (a *Authenticator) RequireCapability(c models.Capability) func(http.Handler) http.Handler {
	return a.RequireAnyCapability(c)
}

// RequireAnyCapability admits users holding at least one of caps. It must
// run after RequireActive.
func (a *Authenticator) RequireAnyCapability(caps ...models.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !a.policy.HasAny(user.Role, caps...) {
				writeError(w, http.StatusForbidden, "Forbidden", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// UserFromContext returns the effective user, which is the impersonated
// user when an administrator is acting as someone else.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func ImpersonatorFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(impersonatorKey).(*models.User)
	return u, ok && u != nil
}

// WithUser is used by tests to stand in for RequireActive.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
