package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"laborguard/internal/config"
	"laborguard/internal/db"
	"laborguard/internal/domain"
	"laborguard/internal/engine"
	"laborguard/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return testNow }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

var seedSeq int

func seedWorker(t *testing.T, env testEnv, name string) domain.Worker {
	t.Helper()
	seedSeq++
	w := domain.Worker{
		ID:                 fmt.Sprintf("w-%s-%d", name, seedSeq),
		FullName:           name,
		CPF:                fmt.Sprintf("cpf-%s-%d", name, seedSeq),
		DateOfBirth:        "1990-01-01",
		WorkerType:         "daily",
		DailyRate:          150,
		RegistrationStatus: "approved",
		Status:             "active",
		RiskLevel:          "low",
		CreatedAt:          testNow.Format(time.RFC3339),
	}
	if err := env.Engine.Repo.InsertWorker(env.Ctx, w); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w
}

func seedClient(t *testing.T, env testEnv, name string) domain.Client {
	t.Helper()
	seedSeq++
	c := domain.Client{
		ID:          fmt.Sprintf("c-%s-%d", name, seedSeq),
		CompanyName: name,
		CNPJ:        fmt.Sprintf("cnpj-%s-%d", name, seedSeq),
		CreatedAt:   testNow.Format(time.RFC3339),
	}
	if err := env.Engine.Repo.InsertClient(env.Ctx, c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func seedLocation(t *testing.T, env testEnv, clientID string) domain.Location {
	t.Helper()
	seedSeq++
	l := domain.Location{
		ID:           fmt.Sprintf("l-%d", seedSeq),
		ClientID:     clientID,
		LocationName: fmt.Sprintf("site-%d", seedSeq),
		CreatedAt:    testNow.Format(time.RFC3339),
	}
	if err := env.Engine.Repo.InsertLocation(env.Ctx, l); err != nil {
		t.Fatalf("seed location: %v", err)
	}
	return l
}

// seedWorkDay records one membership day for the worker at the client with
// the given member status.
func seedWorkDay(t *testing.T, env testEnv, workerID string, clientID, locationID, workDate, status string, rate float64) {
	t.Helper()
	seedSeq++
	op := domain.Operation{
		ID:            fmt.Sprintf("op-%d", seedSeq),
		ClientID:      clientID,
		LocationID:    locationID,
		LeaderID:      "leader-1",
		OperationName: "shift",
		WorkDate:      workDate,
		Status:        "completed",
		CreatedBy:     "tester",
		CreatedAt:     testNow.Format(time.RFC3339),
	}
	if err := env.Engine.Repo.InsertOperation(env.Ctx, op); err != nil {
		t.Fatalf("seed operation: %v", err)
	}
	member := domain.OperationMember{
		ID:          fmt.Sprintf("m-%d", seedSeq),
		OperationID: op.ID,
		WorkerID:    workerID,
		JobFunction: "helper",
		DailyRate:   rate,
		Status:      status,
	}
	if err := env.Engine.Repo.InsertMember(env.Ctx, member); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

// seedAllocation inserts an allocation row directly, bypassing the gate.
func seedAllocation(t *testing.T, env testEnv, workerID, clientID, locationID, workDate string) {
	t.Helper()
	seedSeq++
	a := domain.Allocation{
		ID:          fmt.Sprintf("a-%d", seedSeq),
		WorkerID:    workerID,
		ClientID:    clientID,
		LocationID:  locationID,
		WorkDate:    workDate,
		JobFunction: "helper",
		DailyRate:   150,
		Status:      "scheduled",
		CreatedAt:   testNow.Format(time.RFC3339),
	}
	if err := env.Engine.Repo.InsertAllocation(env.Ctx, nil, a); err != nil {
		t.Fatalf("seed allocation: %v", err)
	}
}

// daysAgo formats a work date n days before the test clock.
func daysAgo(n int) string {
	return testNow.AddDate(0, 0, -n).Format("2006-01-02")
}
