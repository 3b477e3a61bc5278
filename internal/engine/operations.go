package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"laborguard/internal/domain"
	"laborguard/internal/repo"
)

type OperationMemberInput struct {
	WorkerID    string
	JobFunction string
	DailyRate   float64
}

type OperationOptions struct {
	ClientID      string
	LocationID    string
	LeaderID      string
	OperationName string
	WorkDate      string
	Description   string
	ActorID       string
	Members       []OperationMemberInput
}

// OperationDetail is an operation with its crew attached.
type OperationDetail struct {
	Operation domain.Operation         `json:"operation"`
	Members   []domain.OperationMember `json:"members"`
}

// CreateOperation creates the operation and its invited crew. Blocked
// workers cannot be invited.
func (e Engine) CreateOperation(ctx context.Context, opts OperationOptions) (OperationDetail, error) {
	if opts.OperationName == "" {
		return OperationDetail{}, errors.New("operation_name required")
	}
	if opts.LeaderID == "" {
		return OperationDetail{}, errors.New("leader_id required")
	}
	if _, err := time.Parse(workDateLayout, opts.WorkDate); err != nil {
		return OperationDetail{}, fmt.Errorf("work_date: %w", err)
	}
	if _, err := e.Repo.GetClient(ctx, opts.ClientID); err != nil {
		return OperationDetail{}, err
	}
	if _, err := e.Repo.GetLocation(ctx, opts.LocationID); err != nil {
		return OperationDetail{}, err
	}
	for _, m := range opts.Members {
		w, err := e.Repo.GetWorker(ctx, m.WorkerID)
		if err != nil {
			return OperationDetail{}, fmt.Errorf("member %s: %w", m.WorkerID, err)
		}
		if w.IsBlocked {
			return OperationDetail{}, fmt.Errorf("worker %s is blocked", m.WorkerID)
		}
		if m.JobFunction == "" {
			return OperationDetail{}, fmt.Errorf("member %s: job_function required", m.WorkerID)
		}
	}

	op := domain.Operation{
		ID:            uuid.NewString(),
		ClientID:      opts.ClientID,
		LocationID:    opts.LocationID,
		LeaderID:      opts.LeaderID,
		OperationName: opts.OperationName,
		WorkDate:      opts.WorkDate,
		Description:   opts.Description,
		Status:        "created",
		CreatedBy:     opts.ActorID,
		CreatedAt:     e.nowRFC3339(),
	}
	if err := e.Repo.InsertOperation(ctx, op); err != nil {
		return OperationDetail{}, fmt.Errorf("insert operation: %w", err)
	}
	members := make([]domain.OperationMember, 0, len(opts.Members))
	for _, m := range opts.Members {
		member := domain.OperationMember{
			ID:          uuid.NewString(),
			OperationID: op.ID,
			WorkerID:    m.WorkerID,
			JobFunction: m.JobFunction,
			DailyRate:   m.DailyRate,
			Status:      "invited",
		}
		if err := e.Repo.InsertMember(ctx, member); err != nil {
			return OperationDetail{}, fmt.Errorf("insert member: %w", err)
		}
		members = append(members, member)
	}
	return OperationDetail{Operation: op, Members: members}, nil
}

func (e Engine) Operation(ctx context.Context, id string) (OperationDetail, error) {
	op, err := e.Repo.GetOperation(ctx, id)
	if err != nil {
		return OperationDetail{}, err
	}
	members, err := e.Repo.ListMembers(ctx, id)
	if err != nil {
		return OperationDetail{}, err
	}
	return OperationDetail{Operation: op, Members: members}, nil
}

func (e Engine) ListOperations(ctx context.Context, f repo.OperationFilters) ([]domain.Operation, error) {
	return e.Repo.ListOperations(ctx, f)
}

// AcceptOperation confirms an invitation. The caller must present the
// worker's CPF; a mismatch rejects before anything is written.
func (e Engine) AcceptOperation(ctx context.Context, memberID, cpf, ip string) (domain.OperationMember, error) {
	member, err := e.Repo.GetMember(ctx, memberID)
	if err != nil {
		return domain.OperationMember{}, err
	}
	worker, err := e.Repo.GetWorker(ctx, member.WorkerID)
	if err != nil {
		return domain.OperationMember{}, err
	}
	if worker.CPF != cpf {
		return domain.OperationMember{}, errors.New("CPF does not match the worker")
	}
	if member.Status != "invited" {
		return domain.OperationMember{}, fmt.Errorf("member already %s", member.Status)
	}
	if err := e.Repo.UpdateMemberAcceptance(ctx, memberID, e.nowRFC3339(), ip); err != nil {
		return domain.OperationMember{}, err
	}
	return e.Repo.GetMember(ctx, memberID)
}

// StartOperation moves the operation to in_progress. Only its leader may
// start it.
func (e Engine) StartOperation(ctx context.Context, operationID, leaderID string) (domain.Operation, error) {
	op, err := e.Repo.GetOperation(ctx, operationID)
	if err != nil {
		return domain.Operation{}, err
	}
	if op.LeaderID != leaderID {
		return domain.Operation{}, errors.New("only the operation leader can start it")
	}
	if op.Status != "created" {
		return domain.Operation{}, fmt.Errorf("operation already %s", op.Status)
	}
	startedAt := e.nowRFC3339()
	if err := e.Repo.UpdateOperationStatus(ctx, operationID, "in_progress", &startedAt, nil); err != nil {
		return domain.Operation{}, err
	}
	return e.Repo.GetOperation(ctx, operationID)
}

func (e Engine) CheckInMember(ctx context.Context, memberID string) (domain.OperationMember, error) {
	member, err := e.Repo.GetMember(ctx, memberID)
	if err != nil {
		return domain.OperationMember{}, err
	}
	if member.Status != "accepted" {
		return domain.OperationMember{}, fmt.Errorf("member must be accepted to check in, is %s", member.Status)
	}
	if err := e.Repo.UpdateMemberCheckIn(ctx, memberID, e.nowRFC3339()); err != nil {
		return domain.OperationMember{}, err
	}
	return e.Repo.GetMember(ctx, memberID)
}

type CheckOutOptions struct {
	TookMeal bool
	UsedEPI  bool
	Notes    string
}

func (e Engine) CheckOutMember(ctx context.Context, memberID string, opts CheckOutOptions) (domain.OperationMember, error) {
	member, err := e.Repo.GetMember(ctx, memberID)
	if err != nil {
		return domain.OperationMember{}, err
	}
	if member.Status != "present" {
		return domain.OperationMember{}, fmt.Errorf("member must be present to check out, is %s", member.Status)
	}
	var notes *string
	if opts.Notes != "" {
		notes = &opts.Notes
	}
	if err := e.Repo.UpdateMemberCheckOut(ctx, memberID, e.nowRFC3339(), opts.TookMeal, opts.UsedEPI, notes); err != nil {
		return domain.OperationMember{}, err
	}
	return e.Repo.GetMember(ctx, memberID)
}

// CompleteOperation closes the operation. Only its leader may complete it.
func (e Engine) CompleteOperation(ctx context.Context, operationID, leaderID string) (domain.Operation, error) {
	op, err := e.Repo.GetOperation(ctx, operationID)
	if err != nil {
		return domain.Operation{}, err
	}
	if op.LeaderID != leaderID {
		return domain.Operation{}, errors.New("only the operation leader can complete it")
	}
	if op.Status != "in_progress" {
		return domain.Operation{}, fmt.Errorf("operation is %s, not in_progress", op.Status)
	}
	completedAt := e.nowRFC3339()
	if err := e.Repo.UpdateOperationStatus(ctx, operationID, "completed", nil, &completedAt); err != nil {
		return domain.Operation{}, err
	}
	return e.Repo.GetOperation(ctx, operationID)
}

type IncidentOptions struct {
	OperationID  string
	MemberID     string
	IncidentType string
	Severity     string
	Description  string
	ActorID      string
}

// IncidentResult reports the stored incident and whether it tripped an
// automatic block on the member's worker.
type IncidentResult struct {
	Incident    domain.OperationIncident `json:"incident"`
	AutoBlocked bool                     `json:"auto_blocked"`
}

var incidentTypes = map[string]bool{
	"absence": true, "late_arrival": true, "early_departure": true,
	"misconduct": true, "accident": true, "equipment_issue": true,
	"quality_issue": true, "other": true,
}

var incidentSeverities = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

// ReportIncident stores the incident and, when the type carries a block rule
// and the incident names a member, blocks that member's worker in the same
// flow.
func (e Engine) ReportIncident(ctx context.Context, opts IncidentOptions) (IncidentResult, error) {
	if !incidentTypes[opts.IncidentType] {
		return IncidentResult{}, fmt.Errorf("unknown incident type %s", opts.IncidentType)
	}
	if !incidentSeverities[opts.Severity] {
		return IncidentResult{}, fmt.Errorf("unknown severity %s", opts.Severity)
	}
	if opts.Description == "" {
		return IncidentResult{}, errors.New("description required")
	}
	if _, err := e.Repo.GetOperation(ctx, opts.OperationID); err != nil {
		return IncidentResult{}, err
	}
	var member *domain.OperationMember
	if opts.MemberID != "" {
		m, err := e.Repo.GetMember(ctx, opts.MemberID)
		if err != nil {
			return IncidentResult{}, err
		}
		member = &m
	}

	inc := domain.OperationIncident{
		ID:           uuid.NewString(),
		OperationID:  opts.OperationID,
		ReportedBy:   opts.ActorID,
		IncidentType: opts.IncidentType,
		Severity:     opts.Severity,
		Description:  opts.Description,
		Status:       "open",
		CreatedAt:    e.nowRFC3339(),
	}
	if opts.MemberID != "" {
		inc.MemberID = &opts.MemberID
	}
	if err := e.Repo.InsertIncident(ctx, inc); err != nil {
		return IncidentResult{}, fmt.Errorf("insert incident: %w", err)
	}

	res := IncidentResult{Incident: inc}
	if member != nil {
		blocked, err := e.AutoBlockForIncident(ctx, member.WorkerID, opts.IncidentType, opts.ActorID)
		if err != nil {
			return res, err
		}
		res.AutoBlocked = blocked
	}
	return res, nil
}

func (e Engine) Incidents(ctx context.Context, operationID string) ([]domain.OperationIncident, error) {
	return e.Repo.ListIncidents(ctx, operationID)
}
