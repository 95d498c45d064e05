// Package rbac admits or denies resolved users against per-operation role requirements.
package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rolegate/internal/auth/identity"
	"rolegate/internal/auth/metrics"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/requestcontext"
)

// Requirement names the protected resource and the roles allowed to use it.
// An empty Roles list admits every role.
type Requirement struct {
	Resource string
	Roles    []id.Role
}

// Require builds a Requirement.
func Require(resource string, roles ...id.Role) Requirement {
	return Requirement{Resource: resource, Roles: roles}
}

func (r Requirement) allows(role id.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// PermissionDeniedError carries the denial details. It is wrapped in a
// CodePermissionDenied domain error; use errors.As to read it.
type PermissionDeniedError struct {
	Resource string
	Role     id.Role
	Allowed  []id.Role
}

func (e *PermissionDeniedError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, r := range e.Allowed {
		allowed[i] = string(r)
	}
	return fmt.Sprintf("role %q not in [%s] for %s", e.Role, strings.Join(allowed, ","), e.Resource)
}

// Gate evaluates requirements. A disabled gate admits everything.
type Gate struct {
	enabled bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func NewGate(enabled bool, opts ...Option) *Gate {
	g := &Gate{enabled: enabled, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether role checks are enforced.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// Check admits user when the gate is disabled, the requirement lists no roles, or
// the user's role is listed.
//
// Errors: CodePermissionDenied wrapping a *PermissionDeniedError.
func (g *Gate) Check(ctx context.Context, user *models.User, req Requirement) error {
	if !g.enabled || len(req.Roles) == 0 {
		return nil
	}
	var role id.Role
	if user != nil {
		role = user.Role
	}
	if req.allows(role) {
		return nil
	}

	denied := &PermissionDeniedError{Resource: req.Resource, Role: role, Allowed: append([]id.Role(nil), req.Roles...)}
	g.logger.InfoContext(ctx, "permission denied",
		"resource", req.Resource,
		"role", string(role),
		"request_id", requestcontext.RequestID(ctx),
	)
	g.logger.DebugContext(ctx, "permission denied details",
		"resource", req.Resource,
		"role", string(role),
		"allowed", denied.Allowed,
	)
	if g.metrics != nil {
		g.metrics.IncrementPermissionDenied(req.Resource)
	}
	return dErrors.Wrap(denied, dErrors.CodePermissionDenied,
		fmt.Sprintf("User with role '%s' doesn't have access to '%s'", role, req.Resource))
}

// Guard is a check run against the resolved user before an operation body.
type Guard func(ctx context.Context, user *models.User) error

// Guard returns the gate check for req as a Guard.
func (g *Gate) Guard(req Requirement) Guard {
	return func(ctx context.Context, user *models.User) error {
		return g.Check(ctx, user, req)
	}
}

// Active admits active users.
func Active() Guard {
	return func(_ context.Context, user *models.User) error {
		return identity.RequireActive(user)
	}
}

// Superuser admits active superusers.
func Superuser() Guard {
	return func(_ context.Context, user *models.User) error {
		if err := identity.RequireActive(user); err != nil {
			return err
		}
		return identity.RequireSuperuser(user)
	}
}

// All runs guards in order and returns the first failure.
func All(guards ...Guard) Guard {
	return func(ctx context.Context, user *models.User) error {
		for _, guard := range guards {
			if err := guard(ctx, user); err != nil {
				return err
			}
		}
		return nil
	}
}
