// Package middleware resolves the bearer token on incoming requests and enforces
// identity levels and role requirements on chi routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"rolegate/internal/auth/rbac"
	"rolegate/internal/users/models"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/httputil"
	"rolegate/pkg/requestcontext"
)

// Level is the identity check applied after token verification.
type Level int

const (
	// LevelAuthenticated requires a valid token for an existing user.
	LevelAuthenticated Level = iota
	// LevelActive additionally requires an active user.
	LevelActive
	// LevelSuperuser additionally requires an active superuser.
	LevelSuperuser
)

// IdentityResolver maps a raw bearer token to a user at each identity level.
type IdentityResolver interface {
	CurrentUser(ctx context.Context, raw string) (*models.User, error)
	CurrentActiveUser(ctx context.Context, raw string) (*models.User, error)
	CurrentActiveSuperuser(ctx context.Context, raw string) (*models.User, error)
}

// RoleBinder attaches per-user database role information to the request context.
type RoleBinder interface {
	Bind(ctx context.Context, user *models.User) (context.Context, error)
}

type userKey struct{}

// CurrentUser retrieves the user resolved by Authenticate.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey{}).(*models.User)
	return user, ok && user != nil
}

// WithUser injects a resolved user. Handlers under test use it to skip token handling.
func WithUser(ctx context.Context, user *models.User) context.Context {
	ctx = context.WithValue(ctx, userKey{}, user)
	return requestcontext.WithUserID(ctx, user.ID)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticator builds identity middleware.
type Authenticator struct {
	resolver IdentityResolver
	binder   RoleBinder
	logger   *slog.Logger
}

type Option func(*Authenticator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithRoleBinder enables per-user database role binding.
func WithRoleBinder(binder RoleBinder) Option {
	return func(a *Authenticator) {
		a.binder = binder
	}
}

func NewAuthenticator(resolver IdentityResolver, opts ...Option) *Authenticator {
	a := &Authenticator{resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Require resolves the bearer token at level and stores the user in the context.
func (a *Authenticator) Require(level Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := BearerToken(r)
			if !ok {
				a.logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadCredentials, "Not authenticated"))
				return
			}

			user, err := a.resolve(ctx, level, raw)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx = WithUser(ctx, user)
			if a.binder != nil {
				bound, err := a.binder.Bind(ctx, user)
				if err != nil {
					a.logger.ErrorContext(ctx, "failed to bind database role",
						"error", err,
						"user_id", user.ID.String(),
						"request_id", requestcontext.RequestID(ctx),
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to bind database role"))
					return
				}
				ctx = bound
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) resolve(ctx context.Context, level Level, raw string) (*models.User, error) {
	switch level {
	case LevelSuperuser:
		return a.resolver.CurrentActiveSuperuser(ctx, raw)
	case LevelActive:
		return a.resolver.CurrentActiveUser(ctx, raw)
	default:
		return a.resolver.CurrentUser(ctx, raw)
	}
}

// RequireGuard runs guard against the user stored by Require. It must be mounted
// after Require.
func RequireGuard(guard rbac.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadCredentials, "Not authenticated"))
				return
			}
			if err := guard(r.Context(), user); err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles admits users whose role satisfies req under gate.
func RequireRoles(gate *rbac.Gate, req rbac.Requirement) func(http.Handler) http.Handler {
	return RequireGuard(gate.Guard(req))
}
