package repo

import (
	"context"
	"database/sql"
	"strings"

	"laborguard/internal/domain"
)

const operationColumns = `id,client_id,location_id,leader_id,operation_name,work_date,description,status,started_at,completed_at,created_by,created_at`

func (r Repo) InsertOperation(ctx context.Context, o domain.Operation) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO operations(`+operationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.ClientID, o.LocationID, o.LeaderID, o.OperationName, o.WorkDate, nullable(o.Description),
		o.Status, nullableStringPtr(o.StartedAt), nullableStringPtr(o.CompletedAt), o.CreatedBy, o.CreatedAt)
	return err
}

func scanOperation(row rowScanner) (domain.Operation, error) {
	var o domain.Operation
	var description sql.NullString
	var startedAt, completedAt sql.NullString
	err := row.Scan(&o.ID, &o.ClientID, &o.LocationID, &o.LeaderID, &o.OperationName, &o.WorkDate,
		&description, &o.Status, &startedAt, &completedAt, &o.CreatedBy, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.Description = description.String
	o.StartedAt = ptrFromNull(startedAt)
	o.CompletedAt = ptrFromNull(completedAt)
	return o, nil
}

func (r Repo) GetOperation(ctx context.Context, id string) (domain.Operation, error) {
	return scanOperation(r.DB.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE id=?`, id))
}

type OperationFilters struct {
	ClientID string
	Status   string
	WorkDate string
	LeaderID string
}

func (r Repo) ListOperations(ctx context.Context, f OperationFilters) ([]domain.Operation, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.WorkDate != "" {
		clauses = append(clauses, "work_date=?")
		args = append(args, f.WorkDate)
	}
	if f.LeaderID != "" {
		clauses = append(clauses, "leader_id=?")
		args = append(args, f.LeaderID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+operationColumns+` FROM operations `+where+` ORDER BY work_date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Operation
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) UpdateOperationStatus(ctx context.Context, id, status string, startedAt, completedAt *string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE operations SET status=?, started_at=COALESCE(?,started_at), completed_at=COALESCE(?,completed_at) WHERE id=?`,
		status, nullableStringPtr(startedAt), nullableStringPtr(completedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Members

const memberColumns = `id,operation_id,worker_id,job_function,daily_rate,status,accepted_at,acceptance_ip,cpf_confirmed,check_in_time,check_out_time,took_meal,used_epi,notes`

func (r Repo) InsertMember(ctx context.Context, m domain.OperationMember) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO operation_members(`+memberColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.OperationID, m.WorkerID, m.JobFunction, m.DailyRate, m.Status,
		nullableStringPtr(m.AcceptedAt), nullableStringPtr(m.AcceptanceIP), boolToInt(m.CPFConfirmed),
		nullableStringPtr(m.CheckInTime), nullableStringPtr(m.CheckOutTime),
		boolToInt(m.TookMeal), boolToInt(m.UsedEPI), nullableStringPtr(m.Notes))
	return err
}

func scanMember(row rowScanner) (domain.OperationMember, error) {
	var m domain.OperationMember
	var acceptedAt, acceptanceIP, checkIn, checkOut, notes sql.NullString
	var cpfConfirmed, tookMeal, usedEPI int
	err := row.Scan(&m.ID, &m.OperationID, &m.WorkerID, &m.JobFunction, &m.DailyRate, &m.Status,
		&acceptedAt, &acceptanceIP, &cpfConfirmed, &checkIn, &checkOut, &tookMeal, &usedEPI, &notes)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.AcceptedAt = ptrFromNull(acceptedAt)
	m.AcceptanceIP = ptrFromNull(acceptanceIP)
	m.CPFConfirmed = cpfConfirmed != 0
	m.CheckInTime = ptrFromNull(checkIn)
	m.CheckOutTime = ptrFromNull(checkOut)
	m.TookMeal = tookMeal != 0
	m.UsedEPI = usedEPI != 0
	m.Notes = ptrFromNull(notes)
	return m, nil
}

func (r Repo) GetMember(ctx context.Context, id string) (domain.OperationMember, error) {
	return scanMember(r.DB.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM operation_members WHERE id=?`, id))
}

func (r Repo) ListMembers(ctx context.Context, operationID string) ([]domain.OperationMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+memberColumns+` FROM operation_members WHERE operation_id=?`, operationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OperationMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMemberAcceptance(ctx context.Context, id, acceptedAt, acceptanceIP string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE operation_members SET status='accepted', accepted_at=?, acceptance_ip=?, cpf_confirmed=1 WHERE id=?`,
		acceptedAt, nullable(acceptanceIP), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateMemberCheckIn(ctx context.Context, id, checkInTime string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE operation_members SET status='present', check_in_time=? WHERE id=?`, checkInTime, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateMemberCheckOut(ctx context.Context, id, checkOutTime string, tookMeal, usedEPI bool, notes *string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE operation_members SET status='completed', check_out_time=?, took_meal=?, used_epi=?, notes=COALESCE(?,notes) WHERE id=?`,
		checkOutTime, boolToInt(tookMeal), boolToInt(usedEPI), nullableStringPtr(notes), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateMemberStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE operation_members SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMembershipWorkDates returns distinct work dates, newest first, on which
// the worker was present or completed for the given client since the cutoff.
func (r Repo) ListMembershipWorkDates(ctx context.Context, workerID, clientID, since string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT o.work_date
		FROM operation_members m JOIN operations o ON o.id = m.operation_id
		WHERE m.worker_id=? AND o.client_id=? AND m.status IN ('completed','present') AND o.work_date >= ?
		ORDER BY o.work_date DESC`, workerID, clientID, since)
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

// MembershipRecord is one completed day of work, used by the fleet risk scan.
type MembershipRecord struct {
	WorkDate  string
	ClientID  string
	DailyRate float64
}

// ListCompletedWork returns the worker's completed membership days since the
// cutoff, oldest first.
func (r Repo) ListCompletedWork(ctx context.Context, workerID, since string) ([]MembershipRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT o.work_date, o.client_id, m.daily_rate
		FROM operation_members m JOIN operations o ON o.id = m.operation_id
		WHERE m.worker_id=? AND m.status='completed' AND o.work_date >= ?
		ORDER BY o.work_date ASC`, workerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []MembershipRecord
	for rows.Next() {
		var rec MembershipRecord
		if err := rows.Scan(&rec.WorkDate, &rec.ClientID, &rec.DailyRate); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MembershipStats aggregates a worker's entire membership history for the
// autonomy recompute.
type MembershipStats struct {
	UniqueClients   int
	UniqueLocations int
	TotalOperations int
	FirstDate       *string
	LastDate        *string
}

func (r Repo) WorkerMembershipStats(ctx context.Context, workerID string) (MembershipStats, error) {
	var s MembershipStats
	var first, last sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT
		count(DISTINCT o.client_id), count(DISTINCT o.location_id), count(*), min(o.work_date), max(o.work_date)
		FROM operation_members m JOIN operations o ON o.id = m.operation_id
		WHERE m.worker_id=?`, workerID).
		Scan(&s.UniqueClients, &s.UniqueLocations, &s.TotalOperations, &first, &last)
	if err != nil {
		return s, err
	}
	s.FirstDate = ptrFromNull(first)
	s.LastDate = ptrFromNull(last)
	return s, nil
}

// Incidents

const incidentColumns = `id,operation_id,member_id,reported_by,incident_type,severity,description,status,created_at`

func (r Repo) InsertIncident(ctx context.Context, inc domain.OperationIncident) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO operation_incidents(`+incidentColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		inc.ID, inc.OperationID, nullableStringPtr(inc.MemberID), inc.ReportedBy, inc.IncidentType,
		inc.Severity, inc.Description, inc.Status, inc.CreatedAt)
	return err
}

func (r Repo) ListIncidents(ctx context.Context, operationID string) ([]domain.OperationIncident, error) {
	query := `SELECT ` + incidentColumns + ` FROM operation_incidents`
	var args []any
	if operationID != "" {
		query += ` WHERE operation_id=?`
		args = append(args, operationID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OperationIncident
	for rows.Next() {
		var inc domain.OperationIncident
		var memberID sql.NullString
		if err := rows.Scan(&inc.ID, &inc.OperationID, &memberID, &inc.ReportedBy, &inc.IncidentType,
			&inc.Severity, &inc.Description, &inc.Status, &inc.CreatedAt); err != nil {
			return nil, err
		}
		inc.MemberID = ptrFromNull(memberID)
		res = append(res, inc)
	}
	return res, rows.Err()
}
