// Package identity maps a verified bearer token to a user record and applies the
// active and superuser checks.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rolegate/internal/auth/metrics"
	"rolegate/internal/auth/token"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/sentinel"
	"rolegate/pkg/requestcontext"
)

const invalidCredentials = "Could not validate credentials"

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (token.Subject, error)
}

// UserFinder loads users by id.
type UserFinder interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

// Resolver turns bearer tokens into users.
type Resolver struct {
	verifier TokenVerifier
	users    UserFinder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

func New(verifier TokenVerifier, users UserFinder, opts ...Option) (*Resolver, error) {
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if users == nil {
		return nil, errors.New("user finder is required")
	}
	r := &Resolver{
		verifier: verifier,
		users:    users,
		logger:   slog.Default(),
		tracer:   otel.Tracer("rolegate/internal/auth/identity"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CurrentUser verifies raw and loads the user named by its subject.
//
// Errors: CodeBadCredentials for token failures, unparseable subjects and unknown
// users; CodeStoreFailure when the lookup itself fails.
func (r *Resolver) CurrentUser(ctx context.Context, raw string) (*models.User, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "identity.CurrentUser")
	defer span.End()
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveResolve(start)
		}
	}()

	sub, err := r.verifier.Verify(raw)
	if err != nil {
		return nil, r.fail(ctx, span, "token", err)
	}

	userID, err := id.ParseUserID(sub.ID)
	if err != nil {
		return nil, r.fail(ctx, span, "subject", dErrors.Wrap(err, dErrors.CodeBadCredentials, invalidCredentials))
	}
	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, r.fail(ctx, span, "unknown_user", dErrors.Wrap(err, dErrors.CodeBadCredentials, invalidCredentials))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to load user")
	}
	return user, nil
}

// CurrentActiveUser is CurrentUser plus RequireActive.
func (r *Resolver) CurrentActiveUser(ctx context.Context, raw string) (*models.User, error) {
	user, err := r.CurrentUser(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := RequireActive(user); err != nil {
		r.recordFailure("inactive")
		return nil, err
	}
	return user, nil
}

// CurrentActiveSuperuser is CurrentActiveUser plus RequireSuperuser.
func (r *Resolver) CurrentActiveSuperuser(ctx context.Context, raw string) (*models.User, error) {
	user, err := r.CurrentActiveUser(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := RequireSuperuser(user); err != nil {
		r.recordFailure("not_superuser")
		r.logger.InfoContext(ctx, "superuser required",
			"user_id", user.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}
	return user, nil
}

// RequireActive fails with CodeInactiveUser for deactivated users.
func RequireActive(user *models.User) error {
	if user == nil || !user.IsActive {
		return dErrors.New(dErrors.CodeInactiveUser, "Inactive user")
	}
	return nil
}

// RequireSuperuser fails with CodeInsufficientPrivileges for regular users.
func RequireSuperuser(user *models.User) error {
	if user == nil || !user.IsSuperuser {
		return dErrors.New(dErrors.CodeInsufficientPrivileges, "This user doesn't have enough privileges")
	}
	return nil
}

func (r *Resolver) fail(ctx context.Context, span trace.Span, reason string, err error) error {
	r.recordFailure(reason)
	span.SetStatus(codes.Error, reason)
	r.logger.WarnContext(ctx, "unauthorized access",
		"reason", reason,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return err
}

func (r *Resolver) recordFailure(reason string) {
	if r.metrics != nil {
		r.metrics.IncrementAuthFailure(reason)
	}
}
