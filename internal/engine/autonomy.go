package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"laborguard/internal/domain"
)

type RefusalOptions struct {
	WorkerID      string
	OperationID   string
	ClientID      string
	RefusalReason string
	RefusalType   string
	RefusalDate   string
	Evidence      string
	ActorID       string
}

var refusalTypes = map[string]bool{
	"scheduling_conflict": true,
	"distance":            true,
	"rate_too_low":        true,
	"personal_reasons":    true,
	"already_working":     true,
	"other":               true,
}

// RegisterRefusal appends a refusal record and synchronously recomputes the
// worker's autonomy metrics so the cache never lags behind the evidence.
func (e Engine) RegisterRefusal(ctx context.Context, opts RefusalOptions) (domain.Refusal, error) {
	if opts.WorkerID == "" {
		return domain.Refusal{}, errors.New("worker_id required")
	}
	if opts.RefusalReason == "" {
		return domain.Refusal{}, errors.New("refusal_reason required")
	}
	if !refusalTypes[opts.RefusalType] {
		return domain.Refusal{}, fmt.Errorf("unknown refusal type %s", opts.RefusalType)
	}
	if _, err := e.Repo.GetWorker(ctx, opts.WorkerID); err != nil {
		return domain.Refusal{}, err
	}
	date := opts.RefusalDate
	if date == "" {
		date = e.today()
	} else if _, err := time.Parse(workDateLayout, date); err != nil {
		return domain.Refusal{}, fmt.Errorf("refusal_date: %w", err)
	}

	ref := domain.Refusal{
		ID:            uuid.NewString(),
		WorkerID:      opts.WorkerID,
		RefusalReason: opts.RefusalReason,
		RefusalType:   opts.RefusalType,
		RefusalDate:   date,
		RegisteredBy:  opts.ActorID,
		CreatedAt:     e.nowRFC3339(),
	}
	if opts.OperationID != "" {
		ref.OperationID = &opts.OperationID
	}
	if opts.ClientID != "" {
		ref.ClientID = &opts.ClientID
	}
	if opts.Evidence != "" {
		ref.Evidence = &opts.Evidence
	}
	if err := e.Repo.InsertRefusal(ctx, ref); err != nil {
		return domain.Refusal{}, fmt.Errorf("insert refusal: %w", err)
	}
	if _, err := e.RecomputeAutonomyMetrics(ctx, opts.WorkerID); err != nil {
		return domain.Refusal{}, err
	}
	return ref, nil
}

// RecomputeAutonomyMetrics rebuilds the worker's autonomy cache from scratch.
// Refusals and unique clients cap at 30 points each, unique locations and
// total operations at 20 each, the sum at 100.
func (e Engine) RecomputeAutonomyMetrics(ctx context.Context, workerID string) (domain.AutonomyMetrics, error) {
	refusals, err := e.Repo.CountRefusals(ctx, workerID)
	if err != nil {
		return domain.AutonomyMetrics{}, err
	}
	stats, err := e.Repo.WorkerMembershipStats(ctx, workerID)
	if err != nil {
		return domain.AutonomyMetrics{}, err
	}

	score := capped(refusals*10, 30) +
		capped(stats.UniqueClients*10, 30) +
		capped(stats.UniqueLocations*5, 20) +
		capped(stats.TotalOperations*2, 20)
	score = capped(score, 100)

	m := domain.AutonomyMetrics{
		WorkerID:           workerID,
		TotalRefusals:      refusals,
		UniqueClients:      stats.UniqueClients,
		UniqueLocations:    stats.UniqueLocations,
		TotalOperations:    stats.TotalOperations,
		FirstOperationDate: stats.FirstDate,
		LastOperationDate:  stats.LastDate,
		AutonomyScore:      score,
		LastCalculatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.UpsertAutonomyMetrics(ctx, m); err != nil {
		return domain.AutonomyMetrics{}, fmt.Errorf("upsert autonomy metrics: %w", err)
	}
	return m, nil
}

func capped(v, max int) int {
	if v > max {
		return max
	}
	return v
}

func (e Engine) AutonomyMetrics(ctx context.Context, workerID string) (domain.AutonomyMetrics, error) {
	return e.Repo.GetAutonomyMetrics(ctx, workerID)
}

func (e Engine) Refusals(ctx context.Context, workerID string) ([]domain.Refusal, error) {
	return e.Repo.ListRefusals(ctx, workerID)
}

// LowAutonomyWorkers lists cached metrics under the configured threshold,
// most dependent workers first.
func (e Engine) LowAutonomyWorkers(ctx context.Context) ([]domain.AutonomyMetrics, error) {
	return e.Repo.ListAutonomyBelow(ctx, e.Config.Autonomy.LowThreshold)
}
