package repo

import (
	"context"
	"database/sql"
	"errors"

	"assetline/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(id, name, grade, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Name, nullable(u.Grade), u.CreatedAt)
	return err
}

func (r Repo) UpdateUserGrade(ctx context.Context, tx *sql.Tx, id, grade string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET grade=? WHERE id=?`, nullable(grade), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser loads a user with its role set.
func (r Repo) GetUser(ctx context.Context, q Querier, id string) (domain.User, error) {
	if q == nil {
		q = r.DB
	}
	var u domain.User
	err := q.QueryRowContext(ctx, `SELECT id, name, COALESCE(grade,''), created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Grade, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Roles, err = r.userRoles(ctx, q, id)
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, COALESCE(grade,''), created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Grade, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Roles, err = r.userRoles(ctx, r.DB, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}
