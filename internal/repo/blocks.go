package repo

import (
	"context"
	"database/sql"

	"laborguard/internal/domain"
)

// BlockHistory returns the block ledger for one worker, newest first.
func (r Repo) BlockHistory(ctx context.Context, workerID string) ([]domain.BlockEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,worker_id,action,action_by,reason,block_type,expires_at,created_at
		FROM worker_block_history WHERE worker_id=? ORDER BY created_at DESC, id DESC`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BlockEntry
	for rows.Next() {
		var e domain.BlockEntry
		var blockType, expiresAt sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.Action, &e.ActionBy, &e.Reason, &blockType, &expiresAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BlockType = ptrFromNull(blockType)
		e.ExpiresAt = ptrFromNull(expiresAt)
		res = append(res, e)
	}
	return res, rows.Err()
}

// ComplianceCounts returns the worker totals behind the compliance rate.
func (r Repo) ComplianceCounts(ctx context.Context) (total, blocked, temporary, permanent int, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT
		count(CASE WHEN registration_status='approved' THEN 1 END),
		count(CASE WHEN registration_status='approved' AND is_blocked=1 THEN 1 END),
		count(CASE WHEN is_blocked=1 AND block_type='temporary' THEN 1 END),
		count(CASE WHEN is_blocked=1 AND block_type='permanent' THEN 1 END)
		FROM workers`).Scan(&total, &blocked, &temporary, &permanent)
	return
}
