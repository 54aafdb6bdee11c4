package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

const userColumns = "id, email, display_name, password_hash, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// CreateUser inserts a new user into the database.
func (q *queries) CreateUser(ctx context.Context, user *models.User) error {
	_, err := q.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (q *queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUsersByIDs retrieves multiple users by their IDs.
// Users that don't exist are omitted from the result.
func (q *queries) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users, err := q.getUsersWhereIn(ctx, "id", ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// GetUsersByEmails retrieves multiple users by their email addresses.
// Emails without an account are omitted from the result.
func (q *queries) GetUsersByEmails(ctx context.Context, emails []string) (map[string]*models.User, error) {
	users, err := q.getUsersWhereIn(ctx, "email", emails)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]*models.User, len(users))
	for _, u := range users {
		byEmail[u.Email] = u
	}
	return byEmail, nil
}

// getUsersWhereIn loads users whose column matches one of values.
// column is always a constant chosen by the caller.
func (q *queries) getUsersWhereIn(ctx context.Context, column string, values []string) ([]*models.User, error) {
	if len(values) == 0 {
		return nil, nil
	}

	rows, err := q.query(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` IN (`+placeholders(len(values))+`)`,
		stringArgs(nil, values)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by %s: %w", column, err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
