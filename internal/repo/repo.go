package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"laborguard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const workerColumns = `id,full_name,cpf,date_of_birth,mother_name,phone,email,city,state,pix_key,pix_key_type,worker_type,daily_rate,registration_status,rejection_reason,approved_by,approved_at,status,risk_score,risk_level,is_blocked,block_reason,blocked_at,blocked_by,block_type,block_expires_at,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (domain.Worker, error) {
	var w domain.Worker
	var motherName, phone, email, city, state, pixKey, pixKeyType sql.NullString
	var rejectionReason, approvedBy, approvedAt sql.NullString
	var blockReason, blockedAt, blockedBy, blockType, blockExpiresAt sql.NullString
	var isBlocked int
	err := row.Scan(&w.ID, &w.FullName, &w.CPF, &w.DateOfBirth, &motherName, &phone, &email, &city, &state,
		&pixKey, &pixKeyType, &w.WorkerType, &w.DailyRate, &w.RegistrationStatus, &rejectionReason,
		&approvedBy, &approvedAt, &w.Status, &w.RiskScore, &w.RiskLevel, &isBlocked,
		&blockReason, &blockedAt, &blockedBy, &blockType, &blockExpiresAt, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.MotherName = motherName.String
	w.Phone = phone.String
	w.Email = email.String
	w.City = city.String
	w.State = state.String
	w.PixKey = pixKey.String
	w.PixKeyType = pixKeyType.String
	w.RejectionReason = ptrFromNull(rejectionReason)
	w.ApprovedBy = ptrFromNull(approvedBy)
	w.ApprovedAt = ptrFromNull(approvedAt)
	w.IsBlocked = isBlocked != 0
	w.BlockReason = ptrFromNull(blockReason)
	w.BlockedAt = ptrFromNull(blockedAt)
	w.BlockedBy = ptrFromNull(blockedBy)
	w.BlockType = ptrFromNull(blockType)
	w.BlockExpiresAt = ptrFromNull(blockExpiresAt)
	return w, nil
}

func (r Repo) InsertWorker(ctx context.Context, w domain.Worker) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workers(`+workerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.FullName, w.CPF, w.DateOfBirth, nullable(w.MotherName), nullable(w.Phone), nullable(w.Email),
		nullable(w.City), nullable(w.State), nullable(w.PixKey), nullable(w.PixKeyType), w.WorkerType, w.DailyRate,
		w.RegistrationStatus, nullableStringPtr(w.RejectionReason), nullableStringPtr(w.ApprovedBy), nullableStringPtr(w.ApprovedAt),
		w.Status, w.RiskScore, w.RiskLevel, boolToInt(w.IsBlocked), nullableStringPtr(w.BlockReason),
		nullableStringPtr(w.BlockedAt), nullableStringPtr(w.BlockedBy), nullableStringPtr(w.BlockType),
		nullableStringPtr(w.BlockExpiresAt), w.CreatedAt)
	return err
}

func (r Repo) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	return scanWorker(r.DB.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE id=?`, id))
}

func (r Repo) GetWorkerByCPF(ctx context.Context, cpf string) (domain.Worker, error) {
	return scanWorker(r.DB.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE cpf=?`, cpf))
}

type WorkerFilters struct {
	Status             string
	RegistrationStatus string
	Blocked            *bool
}

func (r Repo) ListWorkers(ctx context.Context, f WorkerFilters) ([]domain.Worker, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.RegistrationStatus != "" {
		clauses = append(clauses, "registration_status=?")
		args = append(args, f.RegistrationStatus)
	}
	if f.Blocked != nil {
		clauses = append(clauses, "is_blocked=?")
		args = append(args, boolToInt(*f.Blocked))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) UpdateWorkerRegistration(ctx context.Context, id, registrationStatus, status string, rejectionReason, approvedBy, approvedAt *string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE workers SET registration_status=?, status=?, rejection_reason=?, approved_by=?, approved_at=? WHERE id=?`,
		registrationStatus, status, nullableStringPtr(rejectionReason), nullableStringPtr(approvedBy), nullableStringPtr(approvedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWorkerRisk overwrites the worker's current risk snapshot. Last
// writer wins; there is no merge across concurrent updates.
func (r Repo) UpdateWorkerRisk(ctx context.Context, tx *sql.Tx, id string, score int, level string) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	res, err := exec(ctx, `UPDATE workers SET risk_score=?, risk_level=? WHERE id=?`, score, level, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetWorkerBlocked writes the blocked snapshot onto the worker row.
func (r Repo) SetWorkerBlocked(ctx context.Context, tx *sql.Tx, id, reason, actorID, blockType, blockedAt string, expiresAt *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE workers SET is_blocked=1, block_reason=?, blocked_at=?, blocked_by=?, block_type=?, block_expires_at=?, status='blocked' WHERE id=?`,
		reason, blockedAt, actorID, blockType, nullableStringPtr(expiresAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearWorkerBlock resets all block fields and reactivates the worker.
func (r Repo) ClearWorkerBlock(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE workers SET is_blocked=0, block_reason=NULL, blocked_at=NULL, blocked_by=NULL, block_type=NULL, block_expires_at=NULL, status='active' WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpiredTemporaryBlocks returns workers whose temporary block expired
// strictly before now. Workers already unblocked by a previous sweep are not
// matched, which keeps the sweep idempotent.
func (r Repo) ListExpiredTemporaryBlocks(ctx context.Context, now string) ([]domain.Worker, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE is_blocked=1 AND block_type='temporary' AND block_expires_at < ?`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) CountWorkers(ctx context.Context, where string, args ...any) (int, error) {
	query := `SELECT count(*) FROM workers`
	if where != "" {
		query += ` WHERE ` + where
	}
	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Clients

func (r Repo) InsertClient(ctx context.Context, c domain.Client) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clients(id,company_name,cnpj,created_at) VALUES (?,?,?,?)`,
		c.ID, c.CompanyName, c.CNPJ, c.CreatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var c domain.Client
	err := r.DB.QueryRowContext(ctx, `SELECT id,company_name,cnpj,created_at FROM clients WHERE id=?`, id).
		Scan(&c.ID, &c.CompanyName, &c.CNPJ, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,company_name,cnpj,created_at FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.CompanyName, &c.CNPJ, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// Locations

func (r Repo) InsertLocation(ctx context.Context, l domain.Location) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO work_locations(id,client_id,location_name,city,created_at) VALUES (?,?,?,?,?)`,
		l.ID, l.ClientID, l.LocationName, nullable(l.City), l.CreatedAt)
	return err
}

func (r Repo) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	var l domain.Location
	var city sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,client_id,location_name,city,created_at FROM work_locations WHERE id=?`, id).
		Scan(&l.ID, &l.ClientID, &l.LocationName, &city, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	l.City = city.String
	return l, err
}

func (r Repo) ListLocations(ctx context.Context, clientID string) ([]domain.Location, error) {
	query := `SELECT id,client_id,location_name,city,created_at FROM work_locations`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id=?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Location
	for rows.Next() {
		var l domain.Location
		var city sql.NullString
		if err := rows.Scan(&l.ID, &l.ClientID, &l.LocationName, &city, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.City = city.String
		res = append(res, l)
	}
	return res, rows.Err()
}

// helpers

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func ptrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
