// Package pgrole maps authenticated users onto PostgreSQL roles so row-level
// policies see the caller. Each user gets a NOLOGIN role named after the username
// and is granted the group role named after its application role.
package pgrole

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"rolegate/internal/users/models"
	"rolegate/pkg/requestcontext"
)

const duplicateObject = "42710"

// maxIdentifierLength is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// Binder ensures database roles exist and records the caller's role on the context.
type Binder struct {
	db     *sql.DB
	logger *slog.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

type Option func(*Binder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func New(db *sql.DB, opts ...Option) *Binder {
	b := &Binder{db: db, logger: slog.Default(), known: make(map[string]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind ensures the user's database role exists and stores its name on ctx.
func (b *Binder) Bind(ctx context.Context, user *models.User) (context.Context, error) {
	if user == nil || user.Username == "" {
		return ctx, errors.New("bind role: user has no username")
	}
	if len(user.Username) > maxIdentifierLength {
		return ctx, fmt.Errorf("bind role: username exceeds %d bytes", maxIdentifierLength)
	}
	if err := b.ensure(ctx, user.Username, user.Role.String()); err != nil {
		return ctx, err
	}
	return requestcontext.WithDBRole(ctx, user.Username), nil
}

func (b *Binder) ensure(ctx context.Context, roleName, group string) error {
	key := roleName + "\x00" + group
	b.mu.Lock()
	_, seen := b.known[key]
	b.mu.Unlock()
	if seen {
		return nil
	}

	for _, name := range []string{group, roleName} {
		if err := b.createRole(ctx, name); err != nil {
			return err
		}
	}
	grant := fmt.Sprintf("GRANT %s TO %s", pq.QuoteIdentifier(group), pq.QuoteIdentifier(roleName))
	if _, err := b.db.ExecContext(ctx, grant); err != nil {
		return fmt.Errorf("grant role %s to %s: %w", group, roleName, err)
	}

	b.mu.Lock()
	b.known[key] = struct{}{}
	b.mu.Unlock()
	b.logger.DebugContext(ctx, "database role ensured",
		"role", roleName,
		"group", group,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (b *Binder) createRole(ctx context.Context, name string) error {
	var exists bool
	err := b.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup role %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, "CREATE ROLE "+pq.QuoteIdentifier(name)+" NOLOGIN"); err != nil {
		// Lost a race with a concurrent request creating the same role.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == duplicateObject {
			return nil
		}
		return fmt.Errorf("create role %s: %w", name, err)
	}
	return nil
}
