package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres default name for UNIQUE (email) on users.
const usersEmailConstraint = "users_email_key"

// UserStore is the lookup/creation surface the session layer and guard need.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, username, email, passwordHash string) (User, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email)
}

func (r *Repository) findOne(ctx context.Context, query string, arg string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// Create relies on the table's unique constraints; a concurrent registration
// that slips past the pre-checks surfaces as a duplicate error here.
func (r *Repository) Create(ctx context.Context, username, email, passwordHash string) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	user := User{
		ID:           id.String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == usersEmailConstraint {
				return User{}, ErrDuplicateEmail
			}
			return User{}, ErrDuplicateUsername
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}
