package repo

import (
	"context"
	"database/sql"

	"laborguard/internal/domain"
)

const refusalColumns = `id,worker_id,operation_id,client_id,refusal_reason,refusal_type,refusal_date,evidence,registered_by,created_at`

func (r Repo) InsertRefusal(ctx context.Context, ref domain.Refusal) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO worker_refusals(`+refusalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ref.ID, ref.WorkerID, nullableStringPtr(ref.OperationID), nullableStringPtr(ref.ClientID),
		ref.RefusalReason, ref.RefusalType, ref.RefusalDate, nullableStringPtr(ref.Evidence),
		ref.RegisteredBy, ref.CreatedAt)
	return err
}

func (r Repo) ListRefusals(ctx context.Context, workerID string) ([]domain.Refusal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+refusalColumns+` FROM worker_refusals WHERE worker_id=? ORDER BY refusal_date DESC, created_at DESC`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Refusal
	for rows.Next() {
		var ref domain.Refusal
		var operationID, clientID, evidence sql.NullString
		if err := rows.Scan(&ref.ID, &ref.WorkerID, &operationID, &clientID, &ref.RefusalReason,
			&ref.RefusalType, &ref.RefusalDate, &evidence, &ref.RegisteredBy, &ref.CreatedAt); err != nil {
			return nil, err
		}
		ref.OperationID = ptrFromNull(operationID)
		ref.ClientID = ptrFromNull(clientID)
		ref.Evidence = ptrFromNull(evidence)
		res = append(res, ref)
	}
	return res, rows.Err()
}

func (r Repo) CountRefusals(ctx context.Context, workerID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM worker_refusals WHERE worker_id=?`, workerID).Scan(&n)
	return n, err
}
