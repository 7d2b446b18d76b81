package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assetline/internal/domain"
)

// AppendApproval records entry at the next seq for its request and returns the
// stored entry. The approvals table rejects updates and deletes.
func (r Repo) AppendApproval(ctx context.Context, tx *sql.Tx, entry domain.ApprovalEntry) (domain.ApprovalEntry, error) {
	if tx == nil {
		return entry, errors.New("approval appends require a transaction")
	}
	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM approvals WHERE request_id=?`, entry.RequestID).Scan(&next); err != nil {
		return entry, fmt.Errorf("next approval seq: %w", err)
	}
	entry.Seq = next
	_, err := tx.ExecContext(ctx, `INSERT INTO approvals(id,request_id,seq,approver_id,approver_role,decision,comment,decided_at) VALUES (?,?,?,?,?,?,?,?)`,
		entry.ID, entry.RequestID, entry.Seq, entry.ApproverID, string(entry.ApproverRole), string(entry.Decision), nullable(entry.Comment), entry.DecidedAt)
	if err != nil {
		return entry, fmt.Errorf("insert approval: %w", err)
	}
	return entry, nil
}

func (r Repo) ListApprovals(ctx context.Context, q Querier, requestID string) ([]domain.ApprovalEntry, error) {
	if q == nil {
		q = r.DB
	}
	rows, err := q.QueryContext(ctx, `SELECT id,request_id,seq,approver_id,approver_role,decision,COALESCE(comment,''),decided_at
		FROM approvals WHERE request_id=? ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []domain.ApprovalEntry{}
	for rows.Next() {
		var e domain.ApprovalEntry
		var role, decision string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Seq, &e.ApproverID, &role, &decision, &e.Comment, &e.DecidedAt); err != nil {
			return nil, err
		}
		e.ApproverRole = domain.ApproverRole(role)
		e.Decision = domain.Decision(decision)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
