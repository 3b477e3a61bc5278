package domain

// Worker is an autonomous contractor eligible for work assignments.
// The risk and block fields are the current snapshot; history lives in the
// block ledger and is never rewritten.
type Worker struct {
	ID                 string  `json:"id"`
	FullName           string  `json:"full_name"`
	CPF                string  `json:"cpf"`
	DateOfBirth        string  `json:"date_of_birth" format:"date"`
	MotherName         string  `json:"mother_name,omitempty"`
	Phone              string  `json:"phone,omitempty"`
	Email              string  `json:"email,omitempty"`
	City               string  `json:"city,omitempty"`
	State              string  `json:"state,omitempty"`
	PixKey             string  `json:"pix_key,omitempty"`
	PixKeyType         string  `json:"pix_key_type,omitempty" enum:"cpf,cnpj,email,phone,random"`
	WorkerType         string  `json:"worker_type" enum:"daily,freelancer,mei,clt"`
	DailyRate          float64 `json:"daily_rate"`
	RegistrationStatus string  `json:"registration_status" enum:"pending,approved,rejected"`
	RejectionReason    *string `json:"rejection_reason,omitempty"`
	ApprovedBy         *string `json:"approved_by,omitempty"`
	ApprovedAt         *string `json:"approved_at,omitempty" format:"date-time"`
	Status             string  `json:"status" enum:"inactive,active,blocked"`
	RiskScore          int     `json:"risk_score"`
	RiskLevel          string  `json:"risk_level" enum:"low,medium,high,critical"`
	IsBlocked          bool    `json:"is_blocked"`
	BlockReason        *string `json:"block_reason,omitempty"`
	BlockedAt          *string `json:"blocked_at,omitempty" format:"date-time"`
	BlockedBy          *string `json:"blocked_by,omitempty"`
	BlockType          *string `json:"block_type,omitempty" enum:"temporary,permanent"`
	BlockExpiresAt     *string `json:"block_expires_at,omitempty" format:"date-time"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
}

type Client struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	CNPJ        string `json:"cnpj"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Location struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	LocationName string `json:"location_name"`
	City         string `json:"city,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Operation is a scheduled unit of work for one client/location/date,
// executed by a crew of members under a leader.
type Operation struct {
	ID            string  `json:"id"`
	ClientID      string  `json:"client_id"`
	LocationID    string  `json:"location_id"`
	LeaderID      string  `json:"leader_id"`
	OperationName string  `json:"operation_name"`
	WorkDate      string  `json:"work_date" format:"date"`
	Description   string  `json:"description,omitempty"`
	Status        string  `json:"status" enum:"created,in_progress,completed"`
	StartedAt     *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt   *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedBy     string  `json:"created_by"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type OperationMember struct {
	ID           string  `json:"id"`
	OperationID  string  `json:"operation_id"`
	WorkerID     string  `json:"worker_id"`
	JobFunction  string  `json:"job_function"`
	DailyRate    float64 `json:"daily_rate"`
	Status       string  `json:"status" enum:"invited,accepted,present,completed,absent"`
	AcceptedAt   *string `json:"accepted_at,omitempty" format:"date-time"`
	AcceptanceIP *string `json:"acceptance_ip,omitempty"`
	CPFConfirmed bool    `json:"cpf_confirmed"`
	CheckInTime  *string `json:"check_in_time,omitempty" format:"date-time"`
	CheckOutTime *string `json:"check_out_time,omitempty" format:"date-time"`
	TookMeal     bool    `json:"took_meal"`
	UsedEPI      bool    `json:"used_epi"`
	Notes        *string `json:"notes,omitempty"`
}

type OperationIncident struct {
	ID           string  `json:"id"`
	OperationID  string  `json:"operation_id"`
	MemberID     *string `json:"member_id,omitempty"`
	ReportedBy   string  `json:"reported_by"`
	IncidentType string  `json:"incident_type" enum:"absence,late_arrival,early_departure,misconduct,accident,equipment_issue,quality_issue,other"`
	Severity     string  `json:"severity" enum:"low,medium,high,critical"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// Allocation is one day of work for one worker at one client/location.
// ConsecutiveDays, DaysThisMonth and RiskFlag are stamped at creation time
// as an audit snapshot and are never recomputed retroactively.
type Allocation struct {
	ID              string  `json:"id"`
	WorkerID        string  `json:"worker_id"`
	ClientID        string  `json:"client_id"`
	LocationID      string  `json:"location_id"`
	WorkDate        string  `json:"work_date" format:"date"`
	JobFunction     string  `json:"job_function"`
	DailyRate       float64 `json:"daily_rate"`
	Status          string  `json:"status" enum:"scheduled,in_progress,completed"`
	ConsecutiveDays int     `json:"consecutive_days"`
	DaysThisMonth   int     `json:"days_this_month"`
	RiskFlag        bool    `json:"risk_flag"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

// BlockEntry is one row of the append-only block ledger.
type BlockEntry struct {
	ID        int64   `json:"id"`
	WorkerID  string  `json:"worker_id"`
	Action    string  `json:"action" enum:"blocked,unblocked"`
	ActionBy  string  `json:"action_by"`
	Reason    string  `json:"reason"`
	BlockType *string `json:"block_type,omitempty" enum:"temporary,permanent"`
	ExpiresAt *string `json:"expires_at,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// Refusal documents that a worker declined an offered assignment. Refusals
// are autonomy evidence and lower the worker's perceived risk.
type Refusal struct {
	ID            string  `json:"id"`
	WorkerID      string  `json:"worker_id"`
	OperationID   *string `json:"operation_id,omitempty"`
	ClientID      *string `json:"client_id,omitempty"`
	RefusalReason string  `json:"refusal_reason"`
	RefusalType   string  `json:"refusal_type" enum:"scheduling_conflict,distance,rate_too_low,personal_reasons,already_working,other"`
	RefusalDate   string  `json:"refusal_date" format:"date"`
	Evidence      *string `json:"evidence,omitempty"`
	RegisteredBy  string  `json:"registered_by"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

// AutonomyMetrics is a derived cache, always fully recomputed from refusals
// and operation memberships, never incremented in place.
type AutonomyMetrics struct {
	WorkerID           string  `json:"worker_id"`
	TotalRefusals      int     `json:"total_refusals"`
	UniqueClients      int     `json:"unique_clients"`
	UniqueLocations    int     `json:"unique_locations"`
	TotalOperations    int     `json:"total_operations"`
	FirstOperationDate *string `json:"first_operation_date,omitempty" format:"date"`
	LastOperationDate  *string `json:"last_operation_date,omitempty" format:"date"`
	AutonomyScore      int     `json:"autonomy_score"`
	LastCalculatedAt   string  `json:"last_calculated_at" format:"date-time"`
}

// AllocationRisk is the allocation-gating assessment for one worker at one
// client and location. Its score scale is independent from WorkerRisk's
// composite scale; the two are intentionally separate.
type AllocationRisk struct {
	Score            int    `json:"score"`
	Level            string `json:"level" enum:"low,medium,high,critical"`
	ConsecutiveDays  int    `json:"consecutive_days"`
	DaysInMonth      int    `json:"days_in_month"`
	MonthsWithClient int    `json:"months_with_client"`
}

// WorkerRisk is one row of the fleet-wide composite risk ranking.
type WorkerRisk struct {
	WorkerID           string  `json:"worker_id"`
	WorkerName         string  `json:"worker_name"`
	WorkerCPF          string  `json:"worker_cpf"`
	MaxConsecutiveDays int     `json:"max_consecutive_days"`
	TotalDaysWorked    int     `json:"total_days_worked"`
	AvgDailyRate       float64 `json:"avg_daily_rate"`
	FinancialExposure  float64 `json:"financial_exposure"`
	AutonomyScore      int     `json:"autonomy_score"`
	RiskScore          int     `json:"risk_score"`
	RiskLevel          string  `json:"risk_level" enum:"low,medium,high,critical"`
	IsBlocked          bool    `json:"is_blocked"`
	BlockReason        *string `json:"block_reason,omitempty"`
	ClientsWithStreaks int     `json:"clients_with_streaks"`
}

type RiskStatistics struct {
	TotalWorkers           int     `json:"total_workers"`
	CriticalRisk           int     `json:"critical_risk"`
	HighRisk               int     `json:"high_risk"`
	MediumRisk             int     `json:"medium_risk"`
	LowRisk                int     `json:"low_risk"`
	TotalFinancialExposure float64 `json:"total_financial_exposure"`
	AvgRiskScore           float64 `json:"avg_risk_score"`
	WorkersBlocked         int     `json:"workers_blocked"`
}

type ComplianceMetrics struct {
	TotalWorkers    int    `json:"total_workers"`
	BlockedWorkers  int    `json:"blocked_workers"`
	TemporaryBlocks int    `json:"temporary_blocks"`
	PermanentBlocks int    `json:"permanent_blocks"`
	ComplianceRate  string `json:"compliance_rate"`
}

// ContinuityCheck is the result of the automatic continuity enforcement.
type ContinuityCheck struct {
	Blocked         bool   `json:"blocked"`
	ConsecutiveDays int    `json:"consecutive_days"`
	Message         string `json:"message"`
}

type APIKey struct {
	ID        string   `json:"id"`
	ActorID   string   `json:"actor_id"`
	Name      string   `json:"name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	KeyHash   string   `json:"key_hash"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}
