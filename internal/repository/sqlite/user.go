package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// CreateUser inserts the user row and its first role row in one transaction.
//
// TRANSACTION PATTERN:
//  1. BeginTx
//  2. defer Rollback (a no-op once Commit has succeeded)
//  3. run every statement on tx, never on db.conn
//  4. Commit
//
// If the role insert fails, the user row is rolled back with it, so a user
// never exists without at least one role.
func (db *DB) CreateUser(ctx context.Context, user *model.User, role model.Role) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning signup tx: %w", err)
	}
	defer tx.Rollback()

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("user", "email", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	if err := insertRole(ctx, tx, user.ID, role); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing signup tx: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT user_id, name, email, password_hash, created_at
		 FROM users WHERE email = ?`,
		email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("user not found with email %s", email))
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT user_id, name, email, password_hash, created_at
		 FROM users WHERE user_id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AssignRole grants role to an existing user outside any transaction.
func (db *DB) AssignRole(ctx context.Context, userID string, role model.Role) error {
	return insertRole(ctx, db.conn, userID, role)
}

// insertRole is the shared body of AssignRole and the signup transaction.
func insertRole(ctx context.Context, ex execer, userID string, role model.Role) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, created_at) VALUES (?, ?, ?)`,
		userID, string(role), time.Now().UTC(),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Duplicate("role", "name", string(role))
		case isForeignKeyViolation(err):
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("sqlite: assigning role %s to %s: %w", role, userID, err)
	}
	return nil
}

// RolesOf lists the roles held by userID, oldest grant first.
func (db *DB) RolesOf(ctx context.Context, userID string) ([]model.Role, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY created_at, role`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing roles of %s: %w", userID, err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("sqlite: scanning role: %w", err)
		}
		roles = append(roles, model.Role(r))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating roles: %w", err)
	}

	// A user with no roles does not exist as far as the registry is concerned.
	if len(roles) == 0 {
		return nil, apperror.NotFound("roles for user", userID)
	}
	return roles, nil
}
