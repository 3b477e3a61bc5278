package engine_test

import (
	"errors"
	"sync"
	"testing"

	"laborguard/internal/engine"
	"laborguard/internal/repo"
)

func TestCreateAllocationFreshWorker(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)

	res, err := env.Engine.CreateAllocation(env.Ctx, engine.AllocationOptions{
		WorkerID:    w.ID,
		ClientID:    c.ID,
		LocationID:  l.ID,
		WorkDate:    daysAgo(0),
		JobFunction: "helper",
		DailyRate:   180,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := res.Allocation
	if a.ConsecutiveDays != 1 || a.DaysThisMonth != 1 {
		t.Fatalf("fresh stamp must be 1/1, got %d/%d", a.ConsecutiveDays, a.DaysThisMonth)
	}
	if a.RiskFlag {
		t.Fatal("low risk must not flag")
	}
	if res.Warning != "" {
		t.Fatalf("unexpected warning %q", res.Warning)
	}
	got, err := env.Engine.Worker(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RiskScore != res.Risk.Score || got.RiskLevel != res.Risk.Level {
		t.Fatalf("worker snapshot must track assessment, got %d/%s", got.RiskScore, got.RiskLevel)
	}
}

func TestCreateAllocationCriticalRejected(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	// 10 adjacent days: 10*10 + 10*5 + 1*20 = 170, critical
	for i := 1; i <= 10; i++ {
		seedAllocation(t, env, w.ID, c.ID, l.ID, daysAgo(i))
	}

	_, err := env.Engine.CreateAllocation(env.Ctx, engine.AllocationOptions{
		WorkerID:    w.ID,
		ClientID:    c.ID,
		LocationID:  l.ID,
		WorkDate:    daysAgo(0),
		JobFunction: "helper",
		DailyRate:   180,
	})
	var blocked engine.RiskBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected RiskBlockedError, got %v", err)
	}
	if blocked.Risk.Score != 170 || blocked.Risk.ConsecutiveDays != 10 {
		t.Fatalf("rejection must carry the numbers: %+v", blocked.Risk)
	}

	// nothing was written
	rows, err := env.Engine.ListAllocations(env.Ctx, repo.AllocationFilters{WorkerID: w.ID, WorkDate: daysAgo(0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatal("critical rejection must not insert")
	}
	got, _ := env.Engine.Worker(env.Ctx, w.ID)
	if got.RiskScore != 0 {
		t.Fatal("critical rejection must not touch the worker snapshot")
	}
}

func TestCreateAllocationHighWarns(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	// 7 adjacent days: 70 + 35 + 20 = 125, high
	for i := 1; i <= 7; i++ {
		seedAllocation(t, env, w.ID, c.ID, l.ID, daysAgo(i))
	}

	res, err := env.Engine.CreateAllocation(env.Ctx, engine.AllocationOptions{
		WorkerID:    w.ID,
		ClientID:    c.ID,
		LocationID:  l.ID,
		WorkDate:    daysAgo(0),
		JobFunction: "helper",
		DailyRate:   180,
	})
	if err != nil {
		t.Fatalf("high risk must still admit: %v", err)
	}
	if res.Warning == "" {
		t.Fatal("high risk must warn")
	}
	if !res.Allocation.RiskFlag {
		t.Fatal("high risk must flag the allocation")
	}
	if res.Allocation.ConsecutiveDays != 8 || res.Allocation.DaysThisMonth != 8 {
		t.Fatalf("stamp must be assessment+1, got %d/%d", res.Allocation.ConsecutiveDays, res.Allocation.DaysThisMonth)
	}
}

func TestCreateAllocationBlockedWorker(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	if err := env.Engine.BlockWorker(env.Ctx, engine.BlockOptions{
		WorkerID: w.ID, Reason: "r", ActorID: "admin-1", BlockType: "permanent",
	}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateAllocation(env.Ctx, engine.AllocationOptions{
		WorkerID: w.ID, ClientID: c.ID, LocationID: l.ID, WorkDate: daysAgo(0), JobFunction: "helper",
	})
	if err == nil {
		t.Fatal("blocked worker must not be allocatable")
	}
}

func TestCreateAllocationDuplicateDate(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	opts := engine.AllocationOptions{
		WorkerID: w.ID, ClientID: c.ID, LocationID: l.ID, WorkDate: daysAgo(0), JobFunction: "helper",
	}
	if _, err := env.Engine.CreateAllocation(env.Ctx, opts); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAllocation(env.Ctx, opts); err == nil {
		t.Fatal("same worker and date must not double-book")
	}
}

func TestCreateAllocationDuplicateDateAcrossClients(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c1 := seedClient(t, env, "acme")
	l1 := seedLocation(t, env, c1.ID)
	c2 := seedClient(t, env, "globex")
	l2 := seedLocation(t, env, c2.ID)

	pairs := []engine.AllocationOptions{
		{WorkerID: w.ID, ClientID: c1.ID, LocationID: l1.ID, WorkDate: daysAgo(0), JobFunction: "helper"},
		{WorkerID: w.ID, ClientID: c2.ID, LocationID: l2.ID, WorkDate: daysAgo(0), JobFunction: "helper"},
	}
	errs := make([]error, len(pairs))
	var wg sync.WaitGroup
	for i, opts := range pairs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.Engine.CreateAllocation(env.Ctx, opts)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Fatalf("same worker and date across clients must admit exactly one, got %d (%v, %v)", ok, errs[0], errs[1])
	}
}

func TestSuggestWorkersOrdering(t *testing.T) {
	env := newTestEnv(t)
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)

	busy := seedWorker(t, env, "busy")
	for i := 1; i <= 5; i++ {
		seedAllocation(t, env, busy.ID, c.ID, l.ID, daysAgo(i))
	}
	idle := seedWorker(t, env, "idle")

	got, err := env.Engine.SuggestWorkers(env.Ctx, c.ID, l.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both active workers, got %d", len(got))
	}
	if got[0].Worker.ID != idle.ID {
		t.Fatal("lowest risk must rank first")
	}
	if got[1].Risk.Score <= got[0].Risk.Score {
		t.Fatalf("ordering wrong: %d then %d", got[0].Risk.Score, got[1].Risk.Score)
	}
}
