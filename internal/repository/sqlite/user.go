package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, role, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.Created, u.Updated = fromMillis(ts), fromMillis(ts)

	return nil
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, password_hash, role, created, updated FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, password_hash, role, created, updated FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepo) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	row := r.conn.QueryRow(ctx, query, arg)
	var (
		u       models.User
		role    string
		created int64
		updated int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	u.Created, u.Updated = fromMillis(created), fromMillis(updated)

	return &u, nil
}
