package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyhq/parley/internal/credentials"
	"github.com/parleyhq/parley/internal/platform/db"
	"github.com/parleyhq/parley/internal/shared"
)

// Repository defines persistence operations for the account module.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) ([]credentials.Account, error)
	CreateUser(ctx context.Context, user *User) (int64, error)
	LoadRole(ctx context.Context, userID int64) (string, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByID fetches a user by primary key, joined with its role name.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, r.name, u.status, u.locale, u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email, joined with its role name.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, r.name, u.status, u.locale, u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE lower(u.email) = lower($1)`, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var status string
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &status, &user.Locale, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("account: scan user: %w", err)
	}
	user.Status = Status(status)
	return &user, nil
}

// FindByUsernameOrEmail returns the accounts colliding with either field.
// The caller feeds this candidate set to the duplicate check.
func (r *PGRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) ([]credentials.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT username, email FROM users
		WHERE lower(username) = lower($1) OR lower(email) = lower($2)`, username, email)
	if err != nil {
		return nil, fmt.Errorf("account: find by username or email: %w", err)
	}
	defer rows.Close()
	var accounts []credentials.Account
	for rows.Next() {
		var acc credentials.Account
		if err := rows.Scan(&acc.Username, &acc.Email); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateUser inserts a new account. The role lookup and the insert run in
// one transaction; unique-constraint violations map to ErrConflict so a
// registration racing a duplicate never overwrites.
func (r *PGRepository) CreateUser(ctx context.Context, user *User) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var roleID int64
		if err := tx.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, user.Role).Scan(&roleID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("unknown role %q: %w", user.Role, shared.ErrNotFound)
			}
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO users (username, email, password_hash, role_id, status, locale, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING id`,
			user.Username, user.Email, user.PasswordHash, roleID, string(user.Status), user.Locale, now,
		).Scan(&id)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, shared.ErrConflict
		}
		return 0, fmt.Errorf("account: create user: %w", err)
	}
	return id, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LoadRole resolves the role name assigned to a user.
func (r *PGRepository) LoadRole(ctx context.Context, userID int64) (string, error) {
	var role string
	err := r.pool.QueryRow(ctx, `
		SELECT r.name FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("account: load role: %w", err)
	}
	return strings.ToLower(role), nil
}

// UpdatePassword replaces the stored password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("account: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
