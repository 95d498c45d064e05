// Package postgres opens the shared connection pool and runs transactional
// boundaries for the SQL stores.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"rolegate/internal/platform/config"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/tx"
	"rolegate/pkg/requestcontext"
)

const defaultTxTimeout = 5 * time.Second

// Open connects to cfg.DSN with the pgx driver and pings it.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// TxRunner opens a transaction, binds it to the context and commits when fn succeeds.
type TxRunner struct {
	db            *sql.DB
	timeout       time.Duration
	roleSwitching bool
	logger        *slog.Logger
}

type TxOption func(*TxRunner)

func WithTimeout(d time.Duration) TxOption {
	return func(t *TxRunner) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRoleSwitching makes every transaction assume the database role bound to
// the request context via SET LOCAL ROLE.
func WithRoleSwitching(enabled bool) TxOption {
	return func(t *TxRunner) {
		t.roleSwitching = enabled
	}
}

func WithLogger(logger *slog.Logger) TxOption {
	return func(t *TxRunner) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewTxRunner(db *sql.DB, opts ...TxOption) *TxRunner {
	t := &TxRunner{db: db, timeout: defaultTxTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunInTx runs fn inside a transaction. A transaction already bound to ctx is
// joined rather than nested.
func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if role := requestcontext.DBRole(ctx); t.roleSwitching && role != "" {
		if _, err := sqlTx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(role)); err != nil {
			t.logger.ErrorContext(ctx, "failed to assume database role",
				"role", role,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return fmt.Errorf("set role: %w", err)
		}
	}

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
