package store

import (
	"context"
	"fmt"
	"strings"

	"market-service/internal/apperr"
	"market-service/internal/models"
)

// CreateUser inserts a user, returning a conflict if the email is taken
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, user, query,
		user.Name, strings.ToLower(user.Email), user.PasswordHash, user.IsAdmin)
	if apperr.IsPGCode(err, apperr.PGUniqueViolation) {
		return apperr.Conflict("email already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT id, name, email, password_hash, is_admin, created_at FROM users WHERE LOWER(email) = LOWER($1)", email)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT id, name, email, password_hash, is_admin, created_at FROM users WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "user not found: %d", id)
	}
	return &user, nil
}
