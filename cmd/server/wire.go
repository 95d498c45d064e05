package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rolegate/internal/audit"
	"rolegate/internal/auth/identity"
	authmetrics "rolegate/internal/auth/metrics"
	authmw "rolegate/internal/auth/middleware"
	"rolegate/internal/auth/rbac"
	"rolegate/internal/auth/token"
	"rolegate/internal/params"
	"rolegate/internal/platform/config"
	"rolegate/internal/platform/metrics"
	"rolegate/internal/platform/middleware"
	"rolegate/internal/platform/pgrole"
	"rolegate/internal/platform/postgres"
	platformredis "rolegate/internal/platform/redis"
	"rolegate/internal/users/handler"
	usermetrics "rolegate/internal/users/metrics"
	"rolegate/internal/users/service"
	"rolegate/internal/users/store"
	"rolegate/pkg/platform/circuit"
	"rolegate/pkg/platform/httputil"
	"rolegate/pkg/platform/middleware/metadata"
	"rolegate/pkg/platform/middleware/requesttime"
	"rolegate/pkg/secrets"
)

const auditBufferSize = 4096

// app owns every long-lived dependency of the server.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	registry    *prometheus.Registry
	httpMetrics *metrics.Metrics

	db        *sql.DB
	redis     *platformredis.Client
	storeKind string

	users         *service.Service
	authenticator *authmw.Authenticator
	gate          *rbac.Gate

	auditSink   *audit.KafkaSink
	auditWorker *audit.Worker
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: log, storeKind: "memory"}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.registry = metrics.NewRegistry()
	a.httpMetrics = metrics.New(a.registry)
	authMetrics := authmetrics.New(a.registry)
	userMetrics := usermetrics.New(a.registry)

	roles, err := cfg.RoleSet()
	if err != nil {
		return nil, err
	}

	userStore, txRunner, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	tokenCfg := token.Config{
		SigningKey:     cfg.Auth.SigningKey,
		Algorithm:      cfg.Auth.Algorithm,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		VerifyAudience: cfg.Auth.VerifyAudience,
	}
	verifier, err := token.NewVerifier(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}
	issuer, err := token.NewIssuer(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	var finder identity.UserFinder = userStore
	if cache != nil {
		var finderOpts []store.CachedFinderOption
		if cfg.Cache.Backend == config.CacheRedis {
			finderOpts = append(finderOpts, store.WithBreaker(circuit.New("identity_cache")))
		}
		finder = store.NewCachedFinder(userStore, cache, log, finderOpts...)
	}
	resolver, err := identity.New(verifier, finder,
		identity.WithLogger(log),
		identity.WithMetrics(authMetrics),
	)
	if err != nil {
		return nil, err
	}

	authOpts := []authmw.Option{authmw.WithLogger(log)}
	if cfg.Postgres.RoleSwitching && a.db != nil {
		authOpts = append(authOpts, authmw.WithRoleBinder(pgrole.New(a.db, pgrole.WithLogger(log))))
	}
	a.authenticator = authmw.NewAuthenticator(resolver, authOpts...)
	a.gate = rbac.NewGate(cfg.RBAC.Enabled, rbac.WithLogger(log), rbac.WithMetrics(authMetrics))

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(userMetrics),
		service.WithAuthMetrics(authMetrics),
		service.WithRoles(roles),
		service.WithTokenIssuer(issuer, cfg.Auth.AccessTokenTTL),
	}
	if cache != nil {
		svcOpts = append(svcOpts, service.WithCache(cache))
	}
	publisher, err := a.openAudit(ctx)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		svcOpts = append(svcOpts, service.WithAuditPublisher(publisher))
	}

	a.users, err = service.New(userStore, txRunner, secrets.NewHasher(cfg.Auth.BcryptCost), svcOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// openStore selects PostgreSQL when a DSN is configured and the in-memory store otherwise.
func (a *app) openStore(ctx context.Context) (service.Store, service.TxRunner, error) {
	cfg := a.cfg.Postgres
	if cfg.DSN == "" {
		a.logger.Warn("DATABASE_URL not set, using in-memory user store")
		mem := store.NewInMemory()
		return mem, mem, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	a.db = db
	a.storeKind = "postgres"
	if cfg.ApplySchema {
		if err := store.ApplySchema(ctx, db); err != nil {
			return nil, nil, err
		}
	}
	pg := store.NewPostgres(db,
		store.WithLogger(a.logger),
		store.WithQueryLogging(a.cfg.IsDevelopment()),
	)
	tx := postgres.NewTxRunner(db,
		postgres.WithTimeout(cfg.TxTimeout),
		postgres.WithRoleSwitching(cfg.RoleSwitching),
		postgres.WithLogger(a.logger),
	)
	return pg, tx, nil
}

func (a *app) openCache(ctx context.Context) (store.UserCache, error) {
	cfg := a.cfg.Cache
	switch cfg.Backend {
	case config.CacheLRU:
		return store.NewLRUCache(cfg.Size, cfg.TTL), nil
	case config.CacheRedis:
		client, err := platformredis.New(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return store.NewRedisCache(client.Client, cfg.TTL), nil
	default:
		return nil, nil
	}
}

// openAudit starts the Kafka audit pipeline when brokers are configured.
func (a *app) openAudit(ctx context.Context) (*audit.Publisher, error) {
	cfg := a.cfg.Kafka
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	sink, err := audit.NewKafkaSink(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	a.auditSink = sink
	if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
		return nil, fmt.Errorf("audit topic: %w", err)
	}
	publisher := audit.NewPublisher(audit.NewRingBuffer(auditBufferSize))
	a.auditWorker = audit.NewWorker(sink, publisher, audit.WithWorkerLogger(a.logger))
	return publisher, nil
}

// bootstrap seeds the first superuser when configured.
func (a *app) bootstrap(ctx context.Context) error {
	b := a.cfg.Bootstrap
	if b.SuperuserEmail == "" {
		return nil
	}
	created, err := a.users.EnsureSuperuser(ctx, b.SuperuserEmail, b.SuperuserPassword)
	if err != nil {
		return fmt.Errorf("bootstrap superuser: %w", err)
	}
	if created {
		a.logger.Info("first superuser created", "email", b.SuperuserEmail)
	}
	return nil
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(a.logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(a.logger))
	r.Use(middleware.Metrics(a.httpMetrics))
	if a.cfg.IsDevelopment() {
		r.Use(middleware.ProcessTime)
	}

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(a.registry))

	users := handler.New(a.users, a.authenticator, a.gate,
		handler.WithLogger(a.logger),
		handler.WithParamsOptions(
			params.WithDefaultTake(a.cfg.Params.DefaultTake),
			params.WithMaxTake(a.cfg.Params.MaxTake),
		),
	)
	r.With(middleware.Timeout(a.cfg.Server.RequestTimeout)).Route(a.cfg.Server.APIPrefix, users.Register)

	return otelhttp.NewHandler(r, "rolegate")
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{"store": "ok"}
	status := http.StatusOK
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Health(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if a.auditSink != nil {
		checks["kafka"] = "ok"
		if err := a.auditSink.Ping(ctx); err != nil {
			checks["kafka"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, status, checks)
}

func (a *app) close() {
	if a.auditSink != nil {
		a.auditSink.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
