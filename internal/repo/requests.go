package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"assetline/internal/domain"
)

const requestColumns = `id,requester_id,manager_id,start_date,end_date,COALESCE(comment,''),status,created_at,updated_at,returned_at`

// InsertRequest stores the request row and its lines in tx.
func (r Repo) InsertRequest(ctx context.Context, tx *sql.Tx, req domain.Request) error {
	if tx == nil {
		return errors.New("request inserts require a transaction")
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO requests(id,requester_id,manager_id,start_date,end_date,comment,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		req.ID, req.RequesterID, req.ManagerID, req.StartDate, req.EndDate, nullable(req.Comment), string(req.Status), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	for i, l := range req.Lines {
		if _, err := tx.ExecContext(ctx, `INSERT INTO request_lines(request_id,position,item_id,quantity) VALUES (?,?,?,?)`,
			req.ID, i, l.ItemID, l.Quantity); err != nil {
			return fmt.Errorf("insert request line %s: %w", l.ItemID, err)
		}
	}
	return nil
}

func scanRequest(scan func(dest ...any) error) (domain.Request, error) {
	var req domain.Request
	var status string
	var returned sql.NullString
	if err := scan(&req.ID, &req.RequesterID, &req.ManagerID, &req.StartDate, &req.EndDate, &req.Comment,
		&status, &req.CreatedAt, &req.UpdatedAt, &returned); err != nil {
		return req, err
	}
	req.Status = domain.Status(status)
	if returned.Valid {
		v := returned.String
		req.ReturnedAt = &v
	}
	return req, nil
}

// GetRequest loads the full aggregate: row, lines joined with the current
// item ledger, and the approval log in seq order.
func (r Repo) GetRequest(ctx context.Context, q Querier, id string) (domain.Request, error) {
	if q == nil {
		q = r.DB
	}
	req, err := scanRequest(q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return req, ErrNotFound
	}
	if err != nil {
		return req, err
	}
	if err := r.loadChildren(ctx, q, &req); err != nil {
		return req, err
	}
	return req, nil
}

// RequestStatus reads only the stored status of id.
func (r Repo) RequestStatus(ctx context.Context, q Querier, id string) (domain.Status, error) {
	if q == nil {
		q = r.DB
	}
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM requests WHERE id=?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return domain.Status(status), err
}

func (r Repo) loadChildren(ctx context.Context, q Querier, req *domain.Request) error {
	lines, err := r.requestLines(ctx, q, req.ID)
	if err != nil {
		return err
	}
	req.Lines = lines
	approvals, err := r.ListApprovals(ctx, q, req.ID)
	if err != nil {
		return err
	}
	req.Approvals = approvals
	return nil
}

func (r Repo) requestLines(ctx context.Context, q Querier, requestID string) ([]domain.RequestLine, error) {
	rows, err := q.QueryContext(ctx, `SELECT l.item_id, l.quantity, i.name, i.is_available
		FROM request_lines l JOIN items i ON i.id = l.item_id
		WHERE l.request_id=? ORDER BY l.position`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []domain.RequestLine{}
	for rows.Next() {
		var l domain.RequestLine
		var avail int
		if err := rows.Scan(&l.ItemID, &l.Quantity, &l.ItemName, &avail); err != nil {
			return nil, err
		}
		l.IsAvailable = avail == 1
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// CompareAndSetStatus moves id from one status to another only if the stored
// status still equals from. It returns ErrStaleStatus otherwise. A non-empty
// returnedAt is recorded alongside the status.
func (r Repo) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.Status, now, returnedAt string) error {
	if tx == nil {
		return errors.New("status writes require a transaction")
	}
	res, err := tx.ExecContext(ctx, `UPDATE requests SET status=?, updated_at=?, returned_at=COALESCE(?, returned_at) WHERE id=? AND status=?`,
		string(to), now, nullable(returnedAt), id, string(from))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

type RequestFilters struct {
	RequesterID string
	ManagerID   string
	Statuses    []domain.Status
	Limit       int
}

// ListRequests returns full aggregates newest first.
func (r Repo) ListRequests(ctx context.Context, q Querier, f RequestFilters) ([]domain.Request, error) {
	if q == nil {
		q = r.DB
	}
	var clauses []string
	var args []any
	if f.RequesterID != "" {
		clauses = append(clauses, "requester_id=?")
		args = append(args, f.RequesterID)
	}
	if f.ManagerID != "" {
		clauses = append(clauses, "manager_id=?")
		args = append(args, f.ManagerID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	reqs := []domain.Request{}
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		reqs = append(reqs, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range reqs {
		if err := r.loadChildren(ctx, q, &reqs[i]); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}
