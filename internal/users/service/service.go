// Package service orchestrates user management: identity and privilege checks,
// uniqueness guards, password hashing and transactional persistence.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rolegate/internal/audit"
	authmetrics "rolegate/internal/auth/metrics"
	"rolegate/internal/params"
	"rolegate/internal/users/metrics"
	"rolegate/internal/users/models"
	"rolegate/pkg/attrs"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/sentinel"
	"rolegate/pkg/requestcontext"
)

// Store persists users. Lookups return sentinel.ErrNotFound; writes that collide
// on email or username return sentinel.ErrAlreadyUsed.
type Store interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, userID id.UserID) error
	List(ctx context.Context, p params.Params, roles []id.Role) ([]*models.User, int, error)
}

// TxRunner runs fn in one transaction; stores join it through ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// TokenIssuer mints access tokens for the login flow.
type TokenIssuer interface {
	Issue(userID id.UserID, ttl time.Duration) (string, time.Time, error)
}

// CacheInvalidator drops cached identities after a committed mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID id.UserID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, e audit.Event) error
}

// Service implements the user CRUD and login flows.
type Service struct {
	store    Store
	tx       TxRunner
	hasher   PasswordHasher
	roles    id.RoleSet
	issuer   TokenIssuer
	tokenTTL time.Duration

	cache       CacheInvalidator
	audit       AuditPublisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	authMetrics *authmetrics.Metrics
	tracer      trace.Tracer

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuthMetrics(m *authmetrics.Metrics) Option {
	return func(s *Service) {
		s.authMetrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithCache(c CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithRoles restricts the roles accepted on create and update.
func WithRoles(roles id.RoleSet) Option {
	return func(s *Service) {
		if len(roles) > 0 {
			s.roles = roles
		}
	}
}

// WithTokenIssuer enables Login.
func WithTokenIssuer(issuer TokenIssuer, ttl time.Duration) Option {
	return func(s *Service) {
		s.issuer = issuer
		s.tokenTTL = ttl
	}
}

func New(store Store, tx TxRunner, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	s := &Service{
		store:  store,
		tx:     tx,
		hasher: hasher,
		roles:  id.AllRoles(),
		logger: slog.Default(),
		tracer: otel.Tracer("rolegate/internal/users/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// storeFailure passes coded errors through and wraps everything else as
// CodeStoreFailure, keeping the cause in the chain.
func (s *Service) storeFailure(ctx context.Context, op string, err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	s.logger.ErrorContext(ctx, "user store operation failed",
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeStoreFailure, "store operation failed")
}

func (s *Service) invalidate(ctx context.Context, userID id.UserID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate cached user",
			"user_id", userID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	s.logger.InfoContext(ctx, string(action), args...)
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Action:    action,
		SubjectID: attrs.ExtractString(attributes, "user_id"),
		ActorID:   attrs.ExtractString(attributes, "actor_id"),
		Email:     attrs.ExtractString(attributes, "email"),
		Reason:    attrs.ExtractString(attributes, "reason"),
	})
}

func (s *Service) incrementMutation(operation string) {
	if s.metrics != nil {
		s.metrics.IncrementMutation(operation)
	}
}

func (s *Service) startSpan(ctx context.Context, name string, actor *models.User) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	if actor != nil {
		span.SetAttributes(attribute.Int64("actor.id", int64(actor.ID)))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
