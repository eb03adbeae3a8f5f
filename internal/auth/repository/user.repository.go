package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mypeeps/config/database"
	"mypeeps/internal/auth/model"
	"mypeeps/pkg/logger"
)

var ErrNotFound = errors.New("user not found")

type UserRepository struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewUserRepository(db *sql.DB, dialect database.Dialect) *UserRepository {
	return &UserRepository{DB: db, Dialect: dialect}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	_, err := r.DB.ExecContext(ctx, database.Rebind(r.Dialect,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create user %s: %v", user.Email, err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, database.Rebind(r.Dialect, query), arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to look up user: %v", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
