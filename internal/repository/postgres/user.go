package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// CreateUser inserts the user row and its first role row in one transaction.
func (db *DB) CreateUser(ctx context.Context, user *model.User, role model.Role) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin signup tx: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after Commit

	user.ID = uuid.NewString()

	const q = `INSERT INTO users (user_id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	err = tx.QueryRow(ctx, q, user.ID, user.Name, user.Email, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("user", "email", user.Email)
		}
		return fmt.Errorf("postgres: insert user: %w", err)
	}

	if err := insertRole(ctx, tx, user.ID, role); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit signup tx: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user registered with email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT user_id, name, email, password_hash, created_at FROM users WHERE email = $1`
	var u model.User
	err := db.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("user not found with email %s", email))
		}
		return nil, fmt.Errorf("postgres: get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the user with the given id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT user_id, name, email, password_hash, created_at FROM users WHERE user_id = $1`
	var u model.User
	err := db.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return &u, nil
}

// AssignRole grants role to an existing user.
func (db *DB) AssignRole(ctx context.Context, userID string, role model.Role) error {
	return insertRole(ctx, db.pool, userID, role)
}

func insertRole(ctx context.Context, ex execer, userID string, role model.Role) error {
	_, err := ex.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, userID, string(role))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Duplicate("role", "name", string(role))
		case isForeignKeyViolation(err), isInvalidID(err):
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("postgres: assign role %s to %s: %w", role, userID, err)
	}
	return nil
}

// RolesOf lists userID's roles; zero roles is reported as not found.
func (db *DB) RolesOf(ctx context.Context, userID string) ([]model.Role, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY created_at, role`, userID)
	if err != nil {
		if isInvalidID(err) {
			return nil, apperror.NotFound("roles for user", userID)
		}
		return nil, fmt.Errorf("postgres: list roles of %s: %w", userID, err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		if isInvalidID(err) {
			return nil, apperror.NotFound("roles for user", userID)
		}
		return nil, fmt.Errorf("postgres: collect roles: %w", err)
	}
	if len(names) == 0 {
		return nil, apperror.NotFound("roles for user", userID)
	}

	roles := make([]model.Role, len(names))
	for i, n := range names {
		roles[i] = model.Role(n)
	}
	return roles, nil
}
