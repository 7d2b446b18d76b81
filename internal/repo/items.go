package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"assetline/internal/domain"
)

// LedgerConflictError reports line items that could not be flipped inside a
// transition: Missing ids no longer exist, Flipped ids already carry the target
// availability.
type LedgerConflictError struct {
	Missing []string
	Flipped []string
}

func (e *LedgerConflictError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing items "+strings.Join(e.Missing, ","))
	}
	if len(e.Flipped) > 0 {
		parts = append(parts, "items already in target state "+strings.Join(e.Flipped, ","))
	}
	return "item ledger conflict: " + strings.Join(parts, "; ")
}

const itemColumns = `id,name,COALESCE(category_id,''),is_available,created_at,updated_at`

func scanItem(scan func(dest ...any) error) (domain.Item, error) {
	var it domain.Item
	var avail int
	if err := scan(&it.ID, &it.Name, &it.CategoryID, &avail, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return it, err
	}
	it.IsAvailable = avail == 1
	return it, nil
}

func (r Repo) InsertItem(ctx context.Context, tx *sql.Tx, it domain.Item) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO items(id,name,category_id,is_available,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		it.ID, it.Name, nullable(it.CategoryID), boolToInt(it.IsAvailable), it.CreatedAt, it.UpdatedAt)
	return err
}

func (r Repo) EnsureCategory(ctx context.Context, tx *sql.Tx, id, name string) error {
	if name == "" {
		name = id
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO categories(id,name) VALUES (?,?)`, id, name)
	return err
}

// GetItem looks an item up through q, which may be the pool or an open transaction.
func (r Repo) GetItem(ctx context.Context, q Querier, id string) (domain.Item, error) {
	if q == nil {
		q = r.DB
	}
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return it, ErrNotFound
	}
	return it, err
}

// ItemsByID returns the items among ids that exist, keyed by id.
func (r Repo) ItemsByID(ctx context.Context, q Querier, ids []string) (map[string]domain.Item, error) {
	if q == nil {
		q = r.DB
	}
	ids = uniqueStrings(ids)
	res := make(map[string]domain.Item, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res[it.ID] = it
	}
	return res, rows.Err()
}

// ItemsAvailability maps each existing id to its availability flag.
func (r Repo) ItemsAvailability(ctx context.Context, q Querier, ids []string) (map[string]bool, error) {
	items, err := r.ItemsByID(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	res := make(map[string]bool, len(items))
	for id, it := range items {
		res[id] = it.IsAvailable
	}
	return res, nil
}

type ItemFilters struct {
	Available *bool
	Category  string
	Limit     int
}

func (r Repo) ListItems(ctx context.Context, f ItemFilters) ([]domain.Item, error) {
	var clauses []string
	var args []any
	if f.Available != nil {
		clauses = append(clauses, "is_available=?")
		args = append(args, boolToInt(*f.Available))
	}
	if f.Category != "" {
		clauses = append(clauses, "category_id=?")
		args = append(args, f.Category)
	}
	query := `SELECT ` + itemColumns + ` FROM items`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

// SetItemsAvailability flips every id to available as one set inside tx. The
// current flags are re-read under the transaction's write lock first; any id
// that is missing or already carries the target value aborts the whole write
// with a *LedgerConflictError and nothing is updated.
func (r Repo) SetItemsAvailability(ctx context.Context, tx *sql.Tx, ids []string, available bool, now string) error {
	if tx == nil {
		return errors.New("availability writes require a transaction")
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	current, err := r.ItemsByID(ctx, tx, ids)
	if err != nil {
		return fmt.Errorf("read item ledger: %w", err)
	}
	conflict := &LedgerConflictError{}
	for _, id := range ids {
		it, ok := current[id]
		switch {
		case !ok:
			conflict.Missing = append(conflict.Missing, id)
		case it.IsAvailable == available:
			conflict.Flipped = append(conflict.Flipped, id)
		}
	}
	if len(conflict.Missing) > 0 || len(conflict.Flipped) > 0 {
		sort.Strings(conflict.Missing)
		sort.Strings(conflict.Flipped)
		return conflict
	}
	args := []any{boolToInt(available), now, boolToInt(!available)}
	args = append(args, stringArgs(ids)...)
	res, err := tx.ExecContext(ctx, `UPDATE items SET is_available=?, updated_at=? WHERE is_available=? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("update item ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return fmt.Errorf("update item ledger: %d of %d items updated", n, len(ids))
	}
	return nil
}

// OverrideItemAvailability sets one flag outside any request lifecycle. It is
// not coordinated with active requests.
func (r Repo) OverrideItemAvailability(ctx context.Context, tx *sql.Tx, id string, available bool, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE items SET is_available=?, updated_at=? WHERE id=?`, boolToInt(available), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
