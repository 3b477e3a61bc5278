package engine_test

import (
	"strings"
	"testing"
	"time"

	"laborguard/internal/engine"
	"laborguard/internal/repo"
)

func TestBlockAndUnblockWorker(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")

	err := env.Engine.BlockWorker(env.Ctx, engine.BlockOptions{
		WorkerID:  w.ID,
		Reason:    "manual review",
		ActorID:   "admin-1",
		BlockType: "temporary",
		Days:      7,
	})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	got, err := env.Engine.Worker(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsBlocked || got.Status != "blocked" {
		t.Fatalf("expected blocked snapshot, got %+v", got)
	}
	if got.BlockExpiresAt == nil {
		t.Fatal("temporary block must carry an expiry")
	}
	wantExpiry := testNow.Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)
	if *got.BlockExpiresAt != wantExpiry {
		t.Fatalf("expiry: got %s want %s", *got.BlockExpiresAt, wantExpiry)
	}

	if err := env.Engine.UnblockWorker(env.Ctx, w.ID, "resolved", "admin-1"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	got, err = env.Engine.Worker(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsBlocked || got.Status != "active" || got.BlockReason != nil {
		t.Fatalf("expected clean snapshot after unblock, got %+v", got)
	}

	history, err := env.Engine.BlockHistory(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(history))
	}
	if history[0].Action != "unblocked" || history[1].Action != "blocked" {
		t.Fatalf("ledger order wrong: %+v", history)
	}
}

func TestBlockUnknownWorker(t *testing.T) {
	env := newTestEnv(t)
	err := env.Engine.BlockWorker(env.Ctx, engine.BlockOptions{
		WorkerID:  "missing",
		Reason:    "x",
		ActorID:   "admin-1",
		BlockType: "permanent",
	})
	if err != repo.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := env.Engine.UnblockWorker(env.Ctx, "missing", "x", "admin-1"); err != repo.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSweepExpiredBlocks(t *testing.T) {
	env := newTestEnv(t)
	expired := seedWorker(t, env, "expired")
	fresh := seedWorker(t, env, "fresh")
	permanent := seedWorker(t, env, "permanent")

	// block, then move the clock past the expiry for one of them
	blockAt := func(workerID string, days int, blockType string) {
		if err := env.Engine.BlockWorker(env.Ctx, engine.BlockOptions{
			WorkerID: workerID, Reason: "r", ActorID: "admin-1", BlockType: blockType, Days: days,
		}); err != nil {
			t.Fatalf("block %s: %v", workerID, err)
		}
	}
	blockAt(expired.ID, 1, "temporary")
	blockAt(fresh.ID, 30, "temporary")
	blockAt(permanent.ID, 0, "permanent")

	env.Engine.Now = func() time.Time { return testNow.Add(48 * time.Hour) }
	n, err := env.Engine.SweepExpiredBlocks(env.Ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 unblocked, got %d", n)
	}

	got, _ := env.Engine.Worker(env.Ctx, expired.ID)
	if got.IsBlocked {
		t.Fatal("expired block must be released")
	}
	history, _ := env.Engine.BlockHistory(env.Ctx, expired.ID)
	if history[0].ActionBy != "system" {
		t.Fatalf("sweep must act as system, got %s", history[0].ActionBy)
	}
	if got, _ := env.Engine.Worker(env.Ctx, fresh.ID); !got.IsBlocked {
		t.Fatal("unexpired temporary block must survive the sweep")
	}
	if got, _ := env.Engine.Worker(env.Ctx, permanent.ID); !got.IsBlocked {
		t.Fatal("permanent block must survive the sweep")
	}

	// second sweep finds nothing
	n, err = env.Engine.SweepExpiredBlocks(env.Ctx)
	if err != nil || n != 0 {
		t.Fatalf("sweep must be idempotent, got n=%d err=%v", n, err)
	}
}

func TestCheckContinuity(t *testing.T) {
	env := newTestEnv(t)
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)

	// 3 consecutive days: automatic temporary block
	over := seedWorker(t, env, "over")
	for i := 1; i <= 3; i++ {
		seedWorkDay(t, env, over.ID, c.ID, l.ID, daysAgo(i), "completed", 150)
	}
	res, err := env.Engine.CheckContinuity(env.Ctx, over.ID, c.ID, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Blocked || res.ConsecutiveDays != 3 {
		t.Fatalf("expected block at 3 days, got %+v", res)
	}
	got, _ := env.Engine.Worker(env.Ctx, over.ID)
	if !got.IsBlocked || got.BlockType == nil || *got.BlockType != "temporary" {
		t.Fatalf("expected temporary block, got %+v", got)
	}
	wantExpiry := testNow.Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)
	if *got.BlockExpiresAt != wantExpiry {
		t.Fatalf("expected 7-day expiry, got %s", *got.BlockExpiresAt)
	}

	// 2 days: advisory only
	near := seedWorker(t, env, "near")
	for i := 1; i <= 2; i++ {
		seedWorkDay(t, env, near.ID, c.ID, l.ID, daysAgo(i), "completed", 150)
	}
	res, err = env.Engine.CheckContinuity(env.Ctx, near.ID, c.ID, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Blocked || res.ConsecutiveDays != 2 {
		t.Fatalf("expected advisory at 2 days, got %+v", res)
	}
	if !strings.Contains(res.Message, "WARNING") {
		t.Fatalf("expected warning message, got %q", res.Message)
	}
	if got, _ := env.Engine.Worker(env.Ctx, near.ID); got.IsBlocked {
		t.Fatal("advisory must not block")
	}

	// no history: OK
	clear := seedWorker(t, env, "clear")
	res, err = env.Engine.CheckContinuity(env.Ctx, clear.ID, c.ID, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Blocked || res.Message != "OK" {
		t.Fatalf("expected OK, got %+v", res)
	}
}

func TestAutoBlockForIncident(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		incidentType string
		blocked      bool
		blockType    string
		hasExpiry    bool
	}{
		{"absence", true, "temporary", true},
		{"misconduct", true, "permanent", false},
		{"accident", true, "permanent", false},
		{"late_arrival", false, "", false},
	}
	for _, c := range cases {
		w := seedWorker(t, env, "w"+c.incidentType)
		blocked, err := env.Engine.AutoBlockForIncident(env.Ctx, w.ID, c.incidentType, "leader-1")
		if err != nil {
			t.Fatalf("%s: %v", c.incidentType, err)
		}
		if blocked != c.blocked {
			t.Fatalf("%s: blocked=%v want %v", c.incidentType, blocked, c.blocked)
		}
		got, _ := env.Engine.Worker(env.Ctx, w.ID)
		if c.blocked {
			if !got.IsBlocked || *got.BlockType != c.blockType {
				t.Fatalf("%s: expected %s block, got %+v", c.incidentType, c.blockType, got)
			}
			if c.hasExpiry != (got.BlockExpiresAt != nil) {
				t.Fatalf("%s: expiry presence wrong", c.incidentType)
			}
		} else if got.IsBlocked {
			t.Fatalf("%s: must be a no-op", c.incidentType)
		}
	}
}

func TestComplianceMetrics(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		seedWorker(t, env, "ok")
	}
	blocked := seedWorker(t, env, "blocked")
	if err := env.Engine.BlockWorker(env.Ctx, engine.BlockOptions{
		WorkerID: blocked.ID, Reason: "r", ActorID: "admin-1", BlockType: "temporary", Days: 3,
	}); err != nil {
		t.Fatal(err)
	}

	m, err := env.Engine.ComplianceMetrics(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalWorkers != 4 || m.BlockedWorkers != 1 {
		t.Fatalf("counts wrong: %+v", m)
	}
	if m.TemporaryBlocks != 1 || m.PermanentBlocks != 0 {
		t.Fatalf("block type counts wrong: %+v", m)
	}
	if m.ComplianceRate != "75.0" {
		t.Fatalf("expected 75.0, got %s", m.ComplianceRate)
	}
}
