package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"laborguard/internal/brdoc"
	"laborguard/internal/domain"
	"laborguard/internal/repo"
)

type WorkerRegistration struct {
	FullName    string
	CPF         string
	DateOfBirth string
	MotherName  string
	Phone       string
	Email       string
	City        string
	State       string
	PixKey      string
	PixKeyType  string
	WorkerType  string
	DailyRate   float64
}

const minWorkerAge = 18

// RegisterWorker creates a pending registration. The worker stays inactive
// until an administrator approves it.
func (e Engine) RegisterWorker(ctx context.Context, reg WorkerRegistration) (domain.Worker, error) {
	if reg.FullName == "" {
		return domain.Worker{}, errors.New("full_name required")
	}
	if !brdoc.ValidCPF(reg.CPF) {
		return domain.Worker{}, errors.New("invalid CPF")
	}
	birth, err := time.Parse(workDateLayout, reg.DateOfBirth)
	if err != nil {
		return domain.Worker{}, fmt.Errorf("date_of_birth: %w", err)
	}
	if age(birth, e.now().UTC()) < minWorkerAge {
		return domain.Worker{}, errors.New("registration not allowed for minors")
	}
	if reg.PixKey != "" && !brdoc.ValidPixKey(reg.PixKeyType, reg.PixKey) {
		return domain.Worker{}, fmt.Errorf("invalid PIX key for type %s", reg.PixKeyType)
	}
	switch reg.WorkerType {
	case "daily", "freelancer", "mei", "clt":
	default:
		return domain.Worker{}, fmt.Errorf("invalid worker type %s", reg.WorkerType)
	}
	if _, err := e.Repo.GetWorkerByCPF(ctx, reg.CPF); err == nil {
		return domain.Worker{}, errors.New("CPF already registered")
	} else if err != repo.ErrNotFound {
		return domain.Worker{}, err
	}

	w := domain.Worker{
		ID:                 uuid.NewString(),
		FullName:           reg.FullName,
		CPF:                reg.CPF,
		DateOfBirth:        reg.DateOfBirth,
		MotherName:         reg.MotherName,
		Phone:              reg.Phone,
		Email:              reg.Email,
		City:               reg.City,
		State:              reg.State,
		PixKey:             reg.PixKey,
		PixKeyType:         reg.PixKeyType,
		WorkerType:         reg.WorkerType,
		DailyRate:          reg.DailyRate,
		RegistrationStatus: "pending",
		Status:             "inactive",
		RiskLevel:          "low",
		CreatedAt:          e.nowRFC3339(),
	}
	if err := e.Repo.InsertWorker(ctx, w); err != nil {
		return domain.Worker{}, fmt.Errorf("insert worker: %w", err)
	}
	return w, nil
}

func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// ApproveWorker activates a pending registration.
func (e Engine) ApproveWorker(ctx context.Context, workerID, actorID string) (domain.Worker, error) {
	w, err := e.Repo.GetWorker(ctx, workerID)
	if err != nil {
		return domain.Worker{}, err
	}
	if w.RegistrationStatus != "pending" {
		return domain.Worker{}, fmt.Errorf("registration already %s", w.RegistrationStatus)
	}
	approvedAt := e.nowRFC3339()
	if err := e.Repo.UpdateWorkerRegistration(ctx, workerID, "approved", "active", nil, &actorID, &approvedAt); err != nil {
		return domain.Worker{}, err
	}
	return e.Repo.GetWorker(ctx, workerID)
}

// RejectWorker records a rejection with its reason. The worker stays
// inactive.
func (e Engine) RejectWorker(ctx context.Context, workerID, reason string) (domain.Worker, error) {
	if reason == "" {
		return domain.Worker{}, errors.New("reason required")
	}
	w, err := e.Repo.GetWorker(ctx, workerID)
	if err != nil {
		return domain.Worker{}, err
	}
	if w.RegistrationStatus != "pending" {
		return domain.Worker{}, fmt.Errorf("registration already %s", w.RegistrationStatus)
	}
	if err := e.Repo.UpdateWorkerRegistration(ctx, workerID, "rejected", "inactive", &reason, nil, nil); err != nil {
		return domain.Worker{}, err
	}
	return e.Repo.GetWorker(ctx, workerID)
}

func (e Engine) PendingWorkers(ctx context.Context) ([]domain.Worker, error) {
	return e.Repo.ListWorkers(ctx, repo.WorkerFilters{RegistrationStatus: "pending"})
}

func (e Engine) Worker(ctx context.Context, id string) (domain.Worker, error) {
	return e.Repo.GetWorker(ctx, id)
}

func (e Engine) ListWorkers(ctx context.Context, f repo.WorkerFilters) ([]domain.Worker, error) {
	return e.Repo.ListWorkers(ctx, f)
}

// WorkerRiskProfile scores a single worker on the fleet composite scale.
func (e Engine) WorkerRiskProfile(ctx context.Context, workerID string) (domain.WorkerRisk, error) {
	w, err := e.Repo.GetWorker(ctx, workerID)
	if err != nil {
		return domain.WorkerRisk{}, err
	}
	since := e.now().UTC().AddDate(0, 0, -e.Config.Compliance.LookbackDays).Format(workDateLayout)
	return e.scoreWorker(ctx, w, since)
}

// Clients and locations.

func (e Engine) CreateClient(ctx context.Context, companyName, cnpj string) (domain.Client, error) {
	if companyName == "" {
		return domain.Client{}, errors.New("company_name required")
	}
	if !brdoc.ValidCNPJ(cnpj) {
		return domain.Client{}, errors.New("invalid CNPJ")
	}
	c := domain.Client{
		ID:          uuid.NewString(),
		CompanyName: companyName,
		CNPJ:        cnpj,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertClient(ctx, c); err != nil {
		return domain.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (e Engine) CreateLocation(ctx context.Context, clientID, locationName, city string) (domain.Location, error) {
	if locationName == "" {
		return domain.Location{}, errors.New("location_name required")
	}
	if _, err := e.Repo.GetClient(ctx, clientID); err != nil {
		return domain.Location{}, err
	}
	l := domain.Location{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		LocationName: locationName,
		City:         city,
		CreatedAt:    e.nowRFC3339(),
	}
	if err := e.Repo.InsertLocation(ctx, l); err != nil {
		return domain.Location{}, fmt.Errorf("insert location: %w", err)
	}
	return l, nil
}
