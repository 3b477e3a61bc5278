package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"laborguard/internal/domain"
	"laborguard/internal/repo"
)

type AllocationOptions struct {
	WorkerID    string
	ClientID    string
	LocationID  string
	WorkDate    string
	JobFunction string
	DailyRate   float64
}

// RiskBlockedError is the hard rejection from the allocation gate. It carries
// the numbers that produced the critical score so the caller can show them.
type RiskBlockedError struct {
	Risk domain.AllocationRisk
}

func (e RiskBlockedError) Error() string {
	return fmt.Sprintf("BLOCKED: worker at critical risk (score: %d). %d consecutive days, %d days this month.",
		e.Risk.Score, e.Risk.ConsecutiveDays, e.Risk.DaysInMonth)
}

// AllocationResult is an admitted allocation plus the assessment that let it
// through and, for high risk, a rotation warning.
type AllocationResult struct {
	Allocation domain.Allocation     `json:"allocation"`
	Risk       domain.AllocationRisk `json:"risk"`
	Warning    string                `json:"warning,omitempty"`
}

// CreateAllocation admits one day of work through the risk gate. Critical
// risk rejects before anything is written; high risk admits with a warning.
// The admitted row is stamped with the streak counters as they will be once
// this day exists, and the worker's risk snapshot is overwritten.
func (e Engine) CreateAllocation(ctx context.Context, opts AllocationOptions) (AllocationResult, error) {
	if opts.WorkerID == "" || opts.ClientID == "" || opts.LocationID == "" {
		return AllocationResult{}, errors.New("worker_id, client_id and location_id required")
	}
	if opts.JobFunction == "" {
		return AllocationResult{}, errors.New("job_function required")
	}
	if _, err := time.Parse(workDateLayout, opts.WorkDate); err != nil {
		return AllocationResult{}, fmt.Errorf("work_date: %w", err)
	}
	worker, err := e.Repo.GetWorker(ctx, opts.WorkerID)
	if err != nil {
		return AllocationResult{}, err
	}
	if worker.IsBlocked {
		return AllocationResult{}, errors.New("worker is blocked")
	}
	if _, err := e.Repo.GetClient(ctx, opts.ClientID); err != nil {
		return AllocationResult{}, err
	}
	if _, err := e.Repo.GetLocation(ctx, opts.LocationID); err != nil {
		return AllocationResult{}, err
	}

	// Two same-day requests for the same worker must not both pass the
	// duplicate check before either inserts, whichever client they name.
	unlock := e.allocLocks.lock(opts.WorkerID)
	defer unlock()

	if exists, err := e.Repo.AllocationExists(ctx, opts.WorkerID, opts.WorkDate); err != nil {
		return AllocationResult{}, err
	} else if exists {
		return AllocationResult{}, errors.New("worker already allocated on that date")
	}

	risk, err := e.AssessAllocationRisk(ctx, opts.WorkerID, opts.ClientID, opts.LocationID)
	if err != nil {
		return AllocationResult{}, err
	}
	if risk.Level == "critical" {
		return AllocationResult{}, RiskBlockedError{Risk: risk}
	}

	a := domain.Allocation{
		ID:              uuid.NewString(),
		WorkerID:        opts.WorkerID,
		ClientID:        opts.ClientID,
		LocationID:      opts.LocationID,
		WorkDate:        opts.WorkDate,
		JobFunction:     opts.JobFunction,
		DailyRate:       opts.DailyRate,
		Status:          "scheduled",
		ConsecutiveDays: risk.ConsecutiveDays + 1,
		DaysThisMonth:   risk.DaysInMonth + 1,
		RiskFlag:        risk.Level == "high" || risk.Level == "critical",
		CreatedAt:       e.nowRFC3339(),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AllocationResult{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAllocation(ctx, tx, a); err != nil {
		return AllocationResult{}, fmt.Errorf("insert allocation: %w", err)
	}
	if err := e.Repo.UpdateWorkerRisk(ctx, tx, opts.WorkerID, risk.Score, risk.Level); err != nil {
		return AllocationResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return AllocationResult{}, err
	}

	res := AllocationResult{Allocation: a, Risk: risk}
	if risk.Level == "high" {
		res.Warning = fmt.Sprintf("worker at high risk (score: %d), consider rotation", risk.Score)
	}
	return res, nil
}

func (e Engine) ListAllocations(ctx context.Context, f repo.AllocationFilters) ([]domain.Allocation, error) {
	return e.Repo.ListAllocations(ctx, f)
}

// WorkerSuggestion pairs an active worker with their assessed risk for a
// prospective client/location.
type WorkerSuggestion struct {
	Worker domain.Worker         `json:"worker"`
	Risk   domain.AllocationRisk `json:"risk"`
}

// SuggestWorkers ranks active workers by ascending gate risk for the given
// pairing and returns twice the requested quantity to leave room for manual
// choice.
func (e Engine) SuggestWorkers(ctx context.Context, clientID, locationID string, quantity int) ([]WorkerSuggestion, error) {
	if quantity <= 0 {
		quantity = 5
	}
	workers, err := e.Repo.ListWorkers(ctx, repo.WorkerFilters{Status: "active"})
	if err != nil {
		return nil, err
	}
	suggestions := make([]WorkerSuggestion, 0, len(workers))
	for _, w := range workers {
		risk, err := e.AssessAllocationRisk(ctx, w.ID, clientID, locationID)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, WorkerSuggestion{Worker: w, Risk: risk})
	}
	sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].Risk.Score < suggestions[j].Risk.Score })
	if len(suggestions) > quantity*2 {
		suggestions = suggestions[:quantity*2]
	}
	return suggestions, nil
}
