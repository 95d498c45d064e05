package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"rolegate/internal/params"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	"rolegate/pkg/platform/sentinel"
	"rolegate/pkg/platform/tx"
	"rolegate/pkg/requestcontext"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const userColumns = `id, email, username, role, full_name, age, phone, avatar, is_active, is_superuser, hashed_password, created_at, updated_at`

// ApplySchema creates the user table and role type when missing.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply user schema: %w", err)
	}
	return nil
}

// Postgres persists users in the "user" table. Calls join the transaction carried
// by ctx, if any.
type Postgres struct {
	db         *sql.DB
	logger     *slog.Logger
	logQueries bool
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

func WithLogger(logger *slog.Logger) PostgresOption {
	return func(s *Postgres) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithQueryLogging logs every statement and its duration at debug level.
func WithQueryLogging(enabled bool) PostgresOption {
	return func(s *Postgres) {
		s.logQueries = enabled
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	s := &Postgres{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, "find_user_by_id", `SELECT `+userColumns+` FROM "user" WHERE id = $1`, int64(userID))
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "find_user_by_email", `SELECT `+userColumns+` FROM "user" WHERE email = $1`, email)
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, "find_user_by_username", `SELECT `+userColumns+` FROM "user" WHERE username = $1`, username)
}

func (s *Postgres) findOne(ctx context.Context, name, query string, arg any) (*models.User, error) {
	defer s.timed(ctx, name, query, time.Now())
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return u, nil
}

func (s *Postgres) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO "user" (email, username, role, full_name, age, phone, avatar, is_active, is_superuser, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + userColumns
	defer s.timed(ctx, "create_user", query, time.Now())

	now := requestcontext.Now(ctx)
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		user.Email, user.Username, string(user.Role), user.FullName, user.Age, user.Phone, user.Avatar,
		user.IsActive, user.IsSuperuser, nullString(user.HashedPassword), now,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, mapWriteError("create user", err)
	}
	return created, nil
}

func (s *Postgres) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE "user" SET
			email = $2, username = $3, role = $4, full_name = $5, age = $6, phone = $7,
			avatar = $8, is_active = $9, is_superuser = $10, hashed_password = $11, updated_at = $12
		WHERE id = $1
		RETURNING ` + userColumns
	defer s.timed(ctx, "update_user", query, time.Now())

	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		int64(user.ID), user.Email, user.Username, string(user.Role), user.FullName, user.Age, user.Phone,
		user.Avatar, user.IsActive, user.IsSuperuser, nullString(user.HashedPassword), requestcontext.Now(ctx),
	)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, mapWriteError("update user", err)
	}
	return updated, nil
}

func (s *Postgres) Delete(ctx context.Context, userID id.UserID) error {
	query := `DELETE FROM "user" WHERE id = $1`
	defer s.timed(ctx, "delete_user", query, time.Now())

	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, int64(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List runs the page and count queries concurrently, or one after the other when
// ctx carries a transaction.
func (s *Postgres) List(ctx context.Context, p params.Params, roles []id.Role) ([]*models.User, int, error) {
	if err := ValidateParams(p); err != nil {
		return nil, 0, err
	}
	q := buildListQuery(p, roles)
	exec := tx.ExecutorFrom(ctx, s.db)

	var (
		users []*models.User
		total int
	)
	page := func(ctx context.Context) error {
		defer s.timed(ctx, "list_users", q.page, time.Now())
		rows, err := exec.QueryContext(ctx, q.page, q.pageArgs...)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return fmt.Errorf("scan user: %w", err)
			}
			users = append(users, u)
		}
		return rows.Err()
	}
	count := func(ctx context.Context) error {
		defer s.timed(ctx, "count_users", q.count, time.Now())
		if err := exec.QueryRowContext(ctx, q.count, q.countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		return nil
	}

	if _, inTx := tx.From(ctx); inTx {
		if err := page(ctx); err != nil {
			return nil, 0, err
		}
		if err := count(ctx); err != nil {
			return nil, 0, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return page(gctx) })
		g.Go(func() error { return count(gctx) })
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, total, nil
}

func (s *Postgres) timed(ctx context.Context, name, query string, start time.Time) {
	if !s.logQueries {
		return
	}
	s.logger.DebugContext(ctx, "query complete",
		"query_name", name,
		"statement", query,
		"duration", time.Since(start),
		"request_id", requestcontext.RequestID(ctx),
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u        models.User
		userID   int64
		role     string
		fullName sql.NullString
		age      sql.NullInt16
		phone    sql.NullString
		avatar   sql.NullString
		hashed   sql.NullString
	)
	if err := row.Scan(&userID, &u.Email, &u.Username, &role, &fullName, &age, &phone, &avatar,
		&u.IsActive, &u.IsSuperuser, &hashed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.UserID(userID)
	u.Role = id.Role(role)
	u.FullName = nullToPtr(fullName)
	u.Phone = nullToPtr(phone)
	u.Avatar = nullToPtr(avatar)
	if age.Valid {
		a := age.Int16
		u.Age = &a
	}
	u.HashedPassword = hashed.String
	return &u, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// mapWriteError turns unique violations into sentinel.ErrAlreadyUsed.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
