package repo

import (
	"context"
	"database/sql"
	"strings"

	"laborguard/internal/domain"
)

const allocationColumns = `id,worker_id,client_id,location_id,work_date,job_function,daily_rate,status,consecutive_days,days_this_month,risk_flag,created_at`

func (r Repo) InsertAllocation(ctx context.Context, tx *sql.Tx, a domain.Allocation) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO allocations(`+allocationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.WorkerID, a.ClientID, a.LocationID, a.WorkDate, a.JobFunction, a.DailyRate, a.Status,
		a.ConsecutiveDays, a.DaysThisMonth, boolToInt(a.RiskFlag), a.CreatedAt)
	return err
}

type AllocationFilters struct {
	WorkerID string
	ClientID string
	WorkDate string
	Status   string
}

func (r Repo) ListAllocations(ctx context.Context, f AllocationFilters) ([]domain.Allocation, error) {
	var clauses []string
	var args []any
	if f.WorkerID != "" {
		clauses = append(clauses, "worker_id=?")
		args = append(args, f.WorkerID)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.WorkDate != "" {
		clauses = append(clauses, "work_date=?")
		args = append(args, f.WorkDate)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+allocationColumns+` FROM allocations `+where+` ORDER BY work_date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func scanAllocation(rows *sql.Rows) (domain.Allocation, error) {
	var a domain.Allocation
	var riskFlag int
	err := rows.Scan(&a.ID, &a.WorkerID, &a.ClientID, &a.LocationID, &a.WorkDate, &a.JobFunction,
		&a.DailyRate, &a.Status, &a.ConsecutiveDays, &a.DaysThisMonth, &riskFlag, &a.CreatedAt)
	a.RiskFlag = riskFlag != 0
	return a, err
}

// ListAllocationDates returns distinct work dates for a worker at one
// location, newest first. Used by the streak walk, which only needs dates.
func (r Repo) ListAllocationDates(ctx context.Context, workerID, locationID, since string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT work_date FROM allocations WHERE worker_id=? AND location_id=? AND work_date >= ? ORDER BY work_date DESC`,
		workerID, locationID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r Repo) CountAllocationsSince(ctx context.Context, workerID, clientID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM allocations WHERE worker_id=? AND client_id=? AND work_date >= ?`,
		workerID, clientID, since).Scan(&n)
	return n, err
}

// CountAllocationMonths counts distinct calendar months in which the worker
// was allocated to the client since the given date.
func (r Repo) CountAllocationMonths(ctx context.Context, workerID, clientID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(DISTINCT substr(work_date,1,7)) FROM allocations WHERE worker_id=? AND client_id=? AND work_date >= ?`,
		workerID, clientID, since).Scan(&n)
	return n, err
}

func (r Repo) AllocationExists(ctx context.Context, workerID, workDate string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM allocations WHERE worker_id=? AND work_date=?`,
		workerID, workDate).Scan(&n)
	return n > 0, err
}
