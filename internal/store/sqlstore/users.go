package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cortexvms/vms-core/internal/vmscore"
)

func (s *Store) PutUser(ctx context.Context, u *vmscore.User) error {
	const q = `
	INSERT INTO users (id, email, password_hash, role, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		email = excluded.email,
		password_hash = excluded.password_hash,
		role = excluded.role
	`
	_, err := s.db.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlstore: put user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*vmscore.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*vmscore.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*vmscore.User, error) {
	var u vmscore.User
	var role string
	var createdAt int64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vmscore.New(vmscore.KindNotFound, "sqlstore.GetUser", "user not found")
		}
		return nil, fmt.Errorf("sqlstore: scan user: %w", err)
	}
	u.Role = vmscore.UserRole(role)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}
