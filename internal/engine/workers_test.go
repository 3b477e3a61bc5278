package engine_test

import (
	"testing"

	"laborguard/internal/engine"
)

func validRegistration() engine.WorkerRegistration {
	return engine.WorkerRegistration{
		FullName:    "Ana Souza",
		CPF:         "529.982.247-25",
		DateOfBirth: "1990-03-10",
		City:        "São Paulo",
		State:       "SP",
		PixKey:      "ana@example.com",
		PixKeyType:  "email",
		WorkerType:  "daily",
		DailyRate:   180,
	}
}

func TestRegisterWorker(t *testing.T) {
	env := newTestEnv(t)
	w, err := env.Engine.RegisterWorker(env.Ctx, validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if w.RegistrationStatus != "pending" || w.Status != "inactive" {
		t.Fatalf("new registrations must be pending/inactive, got %s/%s", w.RegistrationStatus, w.Status)
	}

	pending, err := env.Engine.PendingWorkers(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != w.ID {
		t.Fatalf("pending list wrong: %+v", pending)
	}
}

func TestRegisterWorkerValidation(t *testing.T) {
	env := newTestEnv(t)

	reg := validRegistration()
	reg.CPF = "111.111.111-11"
	if _, err := env.Engine.RegisterWorker(env.Ctx, reg); err == nil {
		t.Fatal("invalid CPF must fail")
	}

	reg = validRegistration()
	reg.DateOfBirth = "2010-01-01"
	if _, err := env.Engine.RegisterWorker(env.Ctx, reg); err == nil {
		t.Fatal("minors must be rejected")
	}

	// 18th birthday is tomorrow relative to the test clock
	reg = validRegistration()
	reg.DateOfBirth = "2007-06-16"
	if _, err := env.Engine.RegisterWorker(env.Ctx, reg); err == nil {
		t.Fatal("one day short of 18 must be rejected")
	}

	reg = validRegistration()
	reg.PixKey = "not-an-email"
	if _, err := env.Engine.RegisterWorker(env.Ctx, reg); err == nil {
		t.Fatal("PIX key must match its type")
	}

	if _, err := env.Engine.RegisterWorker(env.Ctx, validRegistration()); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RegisterWorker(env.Ctx, validRegistration()); err == nil {
		t.Fatal("duplicate CPF must fail")
	}
}

func TestApproveAndRejectWorker(t *testing.T) {
	env := newTestEnv(t)
	w, err := env.Engine.RegisterWorker(env.Ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}

	approved, err := env.Engine.ApproveWorker(env.Ctx, w.ID, "admin-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.RegistrationStatus != "approved" || approved.Status != "active" {
		t.Fatalf("approval must activate, got %s/%s", approved.RegistrationStatus, approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "admin-1" {
		t.Fatal("approval must record the approver")
	}
	if _, err := env.Engine.ApproveWorker(env.Ctx, w.ID, "admin-1"); err == nil {
		t.Fatal("double approval must fail")
	}

	reg := validRegistration()
	reg.CPF = "111.444.777-35"
	other, err := env.Engine.RegisterWorker(env.Ctx, reg)
	if err != nil {
		t.Fatal(err)
	}
	rejected, err := env.Engine.RejectWorker(env.Ctx, other.ID, "incomplete documents")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RegistrationStatus != "rejected" || rejected.Status != "inactive" {
		t.Fatalf("rejection must keep the worker inactive, got %s/%s", rejected.RegistrationStatus, rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "incomplete documents" {
		t.Fatal("rejection must record the reason")
	}
}

func TestCreateClientValidatesCNPJ(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateClient(env.Ctx, "Acme", "11.222.333/0001-82"); err == nil {
		t.Fatal("bad check digit must fail")
	}
	c, err := env.Engine.CreateClient(env.Ctx, "Acme", "11.222.333/0001-81")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateLocation(env.Ctx, c.ID, "warehouse", "Campinas"); err != nil {
		t.Fatal(err)
	}
}
