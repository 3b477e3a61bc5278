package engine_test

import (
	"reflect"
	"testing"

	"laborguard/internal/engine"
	"laborguard/internal/repo"
)

func TestRegisterRefusalRecomputesMetrics(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")

	ref, err := env.Engine.RegisterRefusal(env.Ctx, engine.RefusalOptions{
		WorkerID:      w.ID,
		ClientID:      c.ID,
		RefusalReason: "conflicting booking",
		RefusalType:   "scheduling_conflict",
		ActorID:       "admin-1",
	})
	if err != nil {
		t.Fatalf("register refusal: %v", err)
	}
	if ref.RefusalDate != daysAgo(0) {
		t.Fatalf("default refusal date should be today, got %s", ref.RefusalDate)
	}

	m, err := env.Engine.AutonomyMetrics(env.Ctx, w.ID)
	if err != nil {
		t.Fatalf("metrics must exist after refusal: %v", err)
	}
	if m.TotalRefusals != 1 {
		t.Fatalf("expected 1 refusal, got %d", m.TotalRefusals)
	}
	if m.AutonomyScore != 10 {
		t.Fatalf("one refusal scores 10, got %d", m.AutonomyScore)
	}
}

func TestRegisterRefusalValidation(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")

	if _, err := env.Engine.RegisterRefusal(env.Ctx, engine.RefusalOptions{
		WorkerID: w.ID, RefusalReason: "r", RefusalType: "because",
	}); err == nil {
		t.Fatal("unknown refusal type must fail")
	}
	if _, err := env.Engine.RegisterRefusal(env.Ctx, engine.RefusalOptions{
		WorkerID: "missing", RefusalReason: "r", RefusalType: "other",
	}); err != repo.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAutonomyScoreCaps(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")

	// 5 refusals: factor caps at 30
	for i := 0; i < 5; i++ {
		if _, err := env.Engine.RegisterRefusal(env.Ctx, engine.RefusalOptions{
			WorkerID: w.ID, RefusalReason: "r", RefusalType: "other", RefusalDate: daysAgo(i + 1),
		}); err != nil {
			t.Fatal(err)
		}
	}
	// work across 4 clients, 4 locations, 15 operations; membership status
	// does not matter for autonomy aggregates
	statuses := []string{"invited", "accepted", "present", "absent"}
	for i := 0; i < 4; i++ {
		c := seedClient(t, env, "client")
		l := seedLocation(t, env, c.ID)
		seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(20+i), statuses[i], 150)
	}
	c := seedClient(t, env, "extra")
	l := seedLocation(t, env, c.ID)
	for i := 0; i < 11; i++ {
		seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(30+i), "completed", 150)
	}

	m, err := env.Engine.RecomputeAutonomyMetrics(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalRefusals != 5 || m.UniqueClients != 5 || m.UniqueLocations != 5 || m.TotalOperations != 15 {
		t.Fatalf("aggregates wrong: %+v", m)
	}
	// refusals 30 (capped) + clients 30 (capped) + locations 20 (capped via 5*5=25->20) + operations 20 (capped)
	if m.AutonomyScore != 100 {
		t.Fatalf("expected capped score 100, got %d", m.AutonomyScore)
	}
	if m.FirstOperationDate == nil || *m.FirstOperationDate != daysAgo(40) {
		t.Fatalf("first operation date wrong: %+v", m.FirstOperationDate)
	}
	if m.LastOperationDate == nil || *m.LastOperationDate != daysAgo(20) {
		t.Fatalf("last operation date wrong: %+v", m.LastOperationDate)
	}
}

func TestAutonomyCountsAllMembershipStatuses(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)

	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(3), "invited", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(2), "accepted", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(1), "absent", 150)

	m, err := env.Engine.RecomputeAutonomyMetrics(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalOperations != 3 || m.UniqueClients != 1 || m.UniqueLocations != 1 {
		t.Fatalf("every membership row must count: %+v", m)
	}
	// clients 10 + locations 5 + operations 6
	if m.AutonomyScore != 21 {
		t.Fatalf("expected score 21, got %d", m.AutonomyScore)
	}
	if m.FirstOperationDate == nil || *m.FirstOperationDate != daysAgo(3) {
		t.Fatalf("first operation date wrong: %+v", m.FirstOperationDate)
	}
}

func TestRecomputeAutonomyIdempotent(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(2), "completed", 150)
	if _, err := env.Engine.RegisterRefusal(env.Ctx, engine.RefusalOptions{
		WorkerID: w.ID, RefusalReason: "r", RefusalType: "other", RefusalDate: daysAgo(1),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.RecomputeAutonomyMetrics(env.Ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	first, err := env.Engine.AutonomyMetrics(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RecomputeAutonomyMetrics(env.Ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	second, err := env.Engine.AutonomyMetrics(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recompute without new evidence changed the stored row:\n%+v\n%+v", first, second)
	}
}

func TestLowAutonomyWorkers(t *testing.T) {
	env := newTestEnv(t)
	low := seedWorker(t, env, "low")
	high := seedWorker(t, env, "high")

	if _, err := env.Engine.RecomputeAutonomyMetrics(env.Ctx, low.ID); err != nil {
		t.Fatal(err)
	}
	// enough refusals and clients to clear the threshold
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.RegisterRefusal(env.Ctx, engine.RefusalOptions{
			WorkerID: high.ID, RefusalReason: "r", RefusalType: "other", RefusalDate: daysAgo(i + 1),
		}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := env.Engine.LowAutonomyWorkers(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].WorkerID != low.ID {
		t.Fatalf("expected only the idle worker below threshold, got %+v", rows)
	}
}
