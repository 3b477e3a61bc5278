package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laborguard/internal/domain"
	"laborguard/internal/ledger"
	"laborguard/internal/repo"
)

type BlockOptions struct {
	WorkerID  string
	Reason    string
	ActorID   string
	BlockType string // temporary | permanent
	Days      int    // temporary blocks only
}

// BlockWorker blocks a worker and appends the matching ledger entry in the
// same transaction, so snapshot and history cannot drift apart.
func (e Engine) BlockWorker(ctx context.Context, opts BlockOptions) error {
	if opts.Reason == "" {
		return errors.New("reason required")
	}
	if opts.BlockType != "temporary" && opts.BlockType != "permanent" {
		return fmt.Errorf("invalid block type %s", opts.BlockType)
	}
	if opts.ActorID == "" {
		return errors.New("actor required")
	}

	var expiresAt *string
	if opts.BlockType == "temporary" && opts.Days > 0 {
		v := e.now().UTC().Add(time.Duration(opts.Days) * 24 * time.Hour).Format(time.RFC3339)
		expiresAt = &v
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.SetWorkerBlocked(ctx, tx, opts.WorkerID, opts.Reason, opts.ActorID, opts.BlockType, e.nowRFC3339(), expiresAt); err != nil {
		return err
	}
	entry := ledger.Entry{
		WorkerID:  opts.WorkerID,
		Action:    "blocked",
		ActorID:   opts.ActorID,
		Reason:    opts.Reason,
		BlockType: opts.BlockType,
	}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}
	w := e.Ledger
	w.Now = e.Now
	if err := w.Append(ctx, tx, entry); err != nil {
		return fmt.Errorf("append block ledger: %w", err)
	}
	return tx.Commit()
}

// UnblockWorker clears the block snapshot and records the release.
func (e Engine) UnblockWorker(ctx context.Context, workerID, reason, actorID string) error {
	if reason == "" {
		return errors.New("reason required")
	}
	if actorID == "" {
		return errors.New("actor required")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.ClearWorkerBlock(ctx, tx, workerID); err != nil {
		return err
	}
	w := e.Ledger
	w.Now = e.Now
	if err := w.Append(ctx, tx, ledger.Entry{
		WorkerID: workerID,
		Action:   "unblocked",
		ActorID:  actorID,
		Reason:   reason,
	}); err != nil {
		return fmt.Errorf("append block ledger: %w", err)
	}
	return tx.Commit()
}

// SweepExpiredBlocks releases every temporary block whose expiry has passed.
// Each worker is handled in its own transaction so one failure does not hold
// the rest hostage; the sweep is safe to run repeatedly.
func (e Engine) SweepExpiredBlocks(ctx context.Context) (int, error) {
	expired, err := e.Repo.ListExpiredTemporaryBlocks(ctx, e.nowRFC3339())
	if err != nil {
		return 0, err
	}
	unblocked := 0
	var firstErr error
	for _, w := range expired {
		err := e.UnblockWorker(ctx, w.ID, "Temporary block expired", ledger.SystemActor)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("unblock %s: %w", w.ID, err)
			}
			continue
		}
		unblocked++
	}
	return unblocked, firstErr
}

// CheckContinuity enforces the consecutive-day rule for one worker/client
// pair. At or past the trigger the worker gets a temporary block; one short
// of it the caller gets an advisory.
func (e Engine) CheckContinuity(ctx context.Context, workerID, clientID, actorID string) (domain.ContinuityCheck, error) {
	days, err := e.ConsecutiveDays(ctx, workerID, clientID)
	if err != nil {
		return domain.ContinuityCheck{}, err
	}
	trigger := e.Config.Compliance.BlockTriggerDays
	limit := e.Config.Compliance.LegalLimitDays

	if days >= trigger {
		reason := fmt.Sprintf("Automatic block: %d consecutive days at the same client (legal limit: %d days). High labor risk.", days, limit)
		if err := e.BlockWorker(ctx, BlockOptions{
			WorkerID:  workerID,
			Reason:    reason,
			ActorID:   actorID,
			BlockType: "temporary",
			Days:      e.Config.Compliance.ContinuityBlockDays,
		}); err != nil {
			return domain.ContinuityCheck{}, err
		}
		return domain.ContinuityCheck{
			Blocked:         true,
			ConsecutiveDays: days,
			Message:         fmt.Sprintf("Worker automatically blocked after %d consecutive days", days),
		}, nil
	}
	msg := "OK"
	if days >= limit {
		msg = fmt.Sprintf("WARNING: worker is near the limit (%d consecutive days)", days)
	}
	return domain.ContinuityCheck{ConsecutiveDays: days, Message: msg}, nil
}

// AutoBlockForIncident applies the configured block rule for an incident
// type. Types without a rule are a deliberate no-op.
func (e Engine) AutoBlockForIncident(ctx context.Context, workerID, incidentType, actorID string) (bool, error) {
	rule, ok := e.Config.Incidents[incidentType]
	if !ok {
		return false, nil
	}
	err := e.BlockWorker(ctx, BlockOptions{
		WorkerID:  workerID,
		Reason:    rule.Reason,
		ActorID:   actorID,
		BlockType: rule.Type,
		Days:      rule.Days,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e Engine) BlockedWorkers(ctx context.Context) ([]domain.Worker, error) {
	blocked := true
	return e.Repo.ListWorkers(ctx, repo.WorkerFilters{Blocked: &blocked})
}

func (e Engine) BlockHistory(ctx context.Context, workerID string) ([]domain.BlockEntry, error) {
	if _, err := e.Repo.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}
	return e.Repo.BlockHistory(ctx, workerID)
}

// ComplianceMetrics reports fleet-level block totals and the share of
// approved workers currently clear to work.
func (e Engine) ComplianceMetrics(ctx context.Context) (domain.ComplianceMetrics, error) {
	total, blocked, temporary, permanent, err := e.Repo.ComplianceCounts(ctx)
	if err != nil {
		return domain.ComplianceMetrics{}, err
	}
	rate := "100.0"
	if total > 0 {
		rate = fmt.Sprintf("%.1f", float64(total-blocked)/float64(total)*100)
	}
	return domain.ComplianceMetrics{
		TotalWorkers:    total,
		BlockedWorkers:  blocked,
		TemporaryBlocks: temporary,
		PermanentBlocks: permanent,
		ComplianceRate:  rate,
	}, nil
}
