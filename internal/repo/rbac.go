package repo

import (
	"context"
	"database/sql"
	"fmt"
)

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, id, desc string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO roles(id, description) VALUES (?,?)`, id, nullable(desc))
	return err
}

func (r Repo) RoleExists(ctx context.Context, q Querier, id string) (bool, error) {
	if q == nil {
		q = r.DB
	}
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM roles WHERE id=?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, userID, roleID string) error {
	ok, err := r.RoleExists(ctx, r.q(tx), roleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO user_roles(user_id, role_id) VALUES (?,?)`, userID, roleID)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, userID, roleID string) error {
	_, err := r.q(tx).ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=? AND role_id=?`, userID, roleID)
	return err
}

func (r Repo) userRoles(ctx context.Context, q Querier, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT role_id FROM user_roles WHERE user_id=? ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UsersWithRole lists user ids holding role.
func (r Repo) UsersWithRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM user_roles WHERE role_id=? ORDER BY user_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
