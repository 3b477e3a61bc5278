package server

// Request payloads

type RegisterWorkerRequest struct {
	FullName    string  `json:"full_name"`
	CPF         string  `json:"cpf"`
	DateOfBirth string  `json:"date_of_birth" format:"date"`
	MotherName  string  `json:"mother_name,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty"`
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	PixKey      string  `json:"pix_key,omitempty"`
	PixKeyType  string  `json:"pix_key_type,omitempty" enum:"cpf,cnpj,email,phone,random"`
	WorkerType  string  `json:"worker_type" enum:"daily,freelancer,mei,clt"`
	DailyRate   float64 `json:"daily_rate,omitempty"`
}

type RejectWorkerRequest struct {
	Reason string `json:"reason"`
}

type CreateClientRequest struct {
	CompanyName string `json:"company_name"`
	CNPJ        string `json:"cnpj"`
}

type CreateLocationRequest struct {
	ClientID     string `json:"client_id"`
	LocationName string `json:"location_name"`
	City         string `json:"city,omitempty"`
}

type CreateAllocationRequest struct {
	WorkerID    string  `json:"worker_id"`
	ClientID    string  `json:"client_id"`
	LocationID  string  `json:"location_id"`
	WorkDate    string  `json:"work_date" format:"date"`
	JobFunction string  `json:"job_function"`
	DailyRate   float64 `json:"daily_rate,omitempty"`
}

type OperationMemberRequest struct {
	WorkerID    string  `json:"worker_id"`
	JobFunction string  `json:"job_function"`
	DailyRate   float64 `json:"daily_rate,omitempty"`
}

type CreateOperationRequest struct {
	ClientID      string                   `json:"client_id"`
	LocationID    string                   `json:"location_id"`
	LeaderID      string                   `json:"leader_id"`
	OperationName string                   `json:"operation_name"`
	WorkDate      string                   `json:"work_date" format:"date"`
	Description   string                   `json:"description,omitempty"`
	Members       []OperationMemberRequest `json:"members,omitempty"`
}

type AcceptOperationRequest struct {
	CPF string `json:"cpf"`
	IP  string `json:"ip,omitempty"`
}

type CheckOutRequest struct {
	TookMeal bool   `json:"took_meal"`
	UsedEPI  bool   `json:"used_epi"`
	Notes    string `json:"notes,omitempty"`
}

type ReportIncidentRequest struct {
	MemberID     string `json:"member_id,omitempty"`
	IncidentType string `json:"incident_type" enum:"absence,late_arrival,early_departure,misconduct,accident,equipment_issue,quality_issue,other"`
	Severity     string `json:"severity" enum:"low,medium,high,critical"`
	Description  string `json:"description"`
}

type BlockWorkerRequest struct {
	Reason    string `json:"reason"`
	BlockType string `json:"block_type" enum:"temporary,permanent"`
	Days      int    `json:"days,omitempty"`
}

type UnblockWorkerRequest struct {
	Reason string `json:"reason"`
}

type ContinuityCheckRequest struct {
	WorkerID string `json:"worker_id"`
	ClientID string `json:"client_id"`
}

type RegisterRefusalRequest struct {
	WorkerID      string `json:"worker_id"`
	OperationID   string `json:"operation_id,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	RefusalReason string `json:"refusal_reason"`
	RefusalType   string `json:"refusal_type" enum:"scheduling_conflict,distance,rate_too_low,personal_reasons,already_working,other"`
	RefusalDate   string `json:"refusal_date,omitempty" format:"date"`
	Evidence      string `json:"evidence,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string   `json:"actor_id"`
	Name    string   `json:"name,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	Key     string   `json:"key"`
}
