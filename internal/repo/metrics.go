package repo

import (
	"context"
	"database/sql"

	"laborguard/internal/domain"
)

const metricsColumns = `worker_id,total_refusals,unique_clients,unique_locations,total_operations,first_operation_date,last_operation_date,autonomy_score,last_calculated_at`

// UpsertAutonomyMetrics replaces the worker's cached metrics row wholesale.
func (r Repo) UpsertAutonomyMetrics(ctx context.Context, m domain.AutonomyMetrics) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO worker_autonomy_metrics(`+metricsColumns+`) VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(worker_id) DO UPDATE SET
		total_refusals=excluded.total_refusals, unique_clients=excluded.unique_clients,
		unique_locations=excluded.unique_locations, total_operations=excluded.total_operations,
		first_operation_date=excluded.first_operation_date, last_operation_date=excluded.last_operation_date,
		autonomy_score=excluded.autonomy_score, last_calculated_at=excluded.last_calculated_at`,
		m.WorkerID, m.TotalRefusals, m.UniqueClients, m.UniqueLocations, m.TotalOperations,
		nullableStringPtr(m.FirstOperationDate), nullableStringPtr(m.LastOperationDate),
		m.AutonomyScore, m.LastCalculatedAt)
	return err
}

func scanMetrics(row rowScanner) (domain.AutonomyMetrics, error) {
	var m domain.AutonomyMetrics
	var first, last sql.NullString
	err := row.Scan(&m.WorkerID, &m.TotalRefusals, &m.UniqueClients, &m.UniqueLocations,
		&m.TotalOperations, &first, &last, &m.AutonomyScore, &m.LastCalculatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.FirstOperationDate = ptrFromNull(first)
	m.LastOperationDate = ptrFromNull(last)
	return m, nil
}

func (r Repo) GetAutonomyMetrics(ctx context.Context, workerID string) (domain.AutonomyMetrics, error) {
	return scanMetrics(r.DB.QueryRowContext(ctx, `SELECT `+metricsColumns+` FROM worker_autonomy_metrics WHERE worker_id=?`, workerID))
}

// ListAutonomyBelow returns cached metrics rows with a score under the
// threshold, lowest score first.
func (r Repo) ListAutonomyBelow(ctx context.Context, threshold int) ([]domain.AutonomyMetrics, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+metricsColumns+` FROM worker_autonomy_metrics WHERE autonomy_score < ? ORDER BY autonomy_score ASC`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AutonomyMetrics
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
