package laborguardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal LaborGuard HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Worker represents the API worker model (partial).
type Worker struct {
	ID                 string  `json:"id"`
	FullName           string  `json:"full_name"`
	CPF                string  `json:"cpf"`
	WorkerType         string  `json:"worker_type"`
	DailyRate          float64 `json:"daily_rate"`
	RegistrationStatus string  `json:"registration_status"`
	Status             string  `json:"status"`
	RiskScore          int     `json:"risk_score"`
	RiskLevel          string  `json:"risk_level"`
	IsBlocked          bool    `json:"is_blocked"`
}

// Allocation represents one admitted day of work.
type Allocation struct {
	ID              string  `json:"id"`
	WorkerID        string  `json:"worker_id"`
	ClientID        string  `json:"client_id"`
	LocationID      string  `json:"location_id"`
	WorkDate        string  `json:"work_date"`
	JobFunction     string  `json:"job_function"`
	DailyRate       float64 `json:"daily_rate"`
	Status          string  `json:"status"`
	ConsecutiveDays int     `json:"consecutive_days"`
	DaysThisMonth   int     `json:"days_this_month"`
	RiskFlag        bool    `json:"risk_flag"`
}

// AllocationRisk is the gate assessment attached to an allocation.
type AllocationRisk struct {
	Score            int    `json:"score"`
	Level            string `json:"level"`
	ConsecutiveDays  int    `json:"consecutive_days"`
	DaysInMonth      int    `json:"days_in_month"`
	MonthsWithClient int    `json:"months_with_client"`
}

// AllocationResult is the response from the allocation gate.
type AllocationResult struct {
	Allocation Allocation     `json:"allocation"`
	Risk       AllocationRisk `json:"risk"`
	Warning    string         `json:"warning,omitempty"`
}

// WorkerRisk is one row of the fleet risk ranking.
type WorkerRisk struct {
	WorkerID           string  `json:"worker_id"`
	WorkerName         string  `json:"worker_name"`
	MaxConsecutiveDays int     `json:"max_consecutive_days"`
	TotalDaysWorked    int     `json:"total_days_worked"`
	FinancialExposure  float64 `json:"financial_exposure"`
	AutonomyScore      int     `json:"autonomy_score"`
	RiskScore          int     `json:"risk_score"`
	RiskLevel          string  `json:"risk_level"`
	IsBlocked          bool    `json:"is_blocked"`
}

// BlockEntry is one row of the block ledger.
type BlockEntry struct {
	ID        int64  `json:"id"`
	WorkerID  string `json:"worker_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	ActionBy  string `json:"action_by"`
	CreatedAt string `json:"created_at"`
}

// ContinuityCheck is the result of continuity enforcement.
type ContinuityCheck struct {
	Blocked         bool   `json:"blocked"`
	ConsecutiveDays int    `json:"consecutive_days"`
	Message         string `json:"message"`
}

// ComplianceMetrics are fleet-wide block totals.
type ComplianceMetrics struct {
	TotalWorkers    int    `json:"total_workers"`
	BlockedWorkers  int    `json:"blocked_workers"`
	TemporaryBlocks int    `json:"temporary_blocks"`
	PermanentBlocks int    `json:"permanent_blocks"`
	ComplianceRate  string `json:"compliance_rate"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RegisterWorker submits a self-service registration.
func (c *Client) RegisterWorker(ctx context.Context, fullName, cpf, dateOfBirth, workerType string, dailyRate float64) (Worker, error) {
	body := map[string]any{
		"full_name":     fullName,
		"cpf":           cpf,
		"date_of_birth": dateOfBirth,
		"worker_type":   workerType,
		"daily_rate":    dailyRate,
	}
	var resp Worker
	err := c.do(ctx, http.MethodPost, "workers/register", body, &resp)
	return resp, err
}

// Worker fetches one worker.
func (c *Client) Worker(ctx context.Context, workerID string) (Worker, error) {
	var resp Worker
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("workers/%s", url.PathEscape(workerID)), nil, &resp)
	return resp, err
}

// ApproveWorker approves a pending registration.
func (c *Client) ApproveWorker(ctx context.Context, workerID string) (Worker, error) {
	var resp Worker
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("workers/%s/approve", url.PathEscape(workerID)), nil, &resp)
	return resp, err
}

// CreateAllocation runs a worker through the risk gate for one work date.
// Critical-risk rejections come back as an *APIError with status 422.
func (c *Client) CreateAllocation(ctx context.Context, workerID, clientID, locationID, workDate, jobFunction string, dailyRate float64) (AllocationResult, error) {
	body := map[string]any{
		"worker_id":    workerID,
		"client_id":    clientID,
		"location_id":  locationID,
		"work_date":    workDate,
		"job_function": jobFunction,
		"daily_rate":   dailyRate,
	}
	var resp AllocationResult
	err := c.do(ctx, http.MethodPost, "allocations", body, &resp)
	return resp, err
}

// FleetRisk returns the composite risk ranking, worst first.
func (c *Client) FleetRisk(ctx context.Context) ([]WorkerRisk, error) {
	var resp []WorkerRisk
	err := c.do(ctx, http.MethodGet, "risk/fleet", nil, &resp)
	return resp, err
}

// BlockWorker blocks a worker.
func (c *Client) BlockWorker(ctx context.Context, workerID, reason, blockType string, days int) (Worker, error) {
	body := map[string]any{
		"reason":     reason,
		"block_type": blockType,
	}
	if days > 0 {
		body["days"] = days
	}
	var resp Worker
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("compliance/workers/%s/block", url.PathEscape(workerID)), body, &resp)
	return resp, err
}

// UnblockWorker lifts a block.
func (c *Client) UnblockWorker(ctx context.Context, workerID, reason string) (Worker, error) {
	body := map[string]any{"reason": reason}
	var resp Worker
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("compliance/workers/%s/unblock", url.PathEscape(workerID)), body, &resp)
	return resp, err
}

// BlockHistory returns the block ledger for a worker, newest first.
func (c *Client) BlockHistory(ctx context.Context, workerID string) ([]BlockEntry, error) {
	var resp []BlockEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("compliance/workers/%s/history", url.PathEscape(workerID)), nil, &resp)
	return resp, err
}

// CheckContinuity enforces the consecutive-day rule for a pairing.
func (c *Client) CheckContinuity(ctx context.Context, workerID, clientID string) (ContinuityCheck, error) {
	body := map[string]any{
		"worker_id": workerID,
		"client_id": clientID,
	}
	var resp ContinuityCheck
	err := c.do(ctx, http.MethodPost, "compliance/continuity-check", body, &resp)
	return resp, err
}

// ComplianceMetrics returns fleet-wide block totals.
func (c *Client) ComplianceMetrics(ctx context.Context) (ComplianceMetrics, error) {
	var resp ComplianceMetrics
	err := c.do(ctx, http.MethodGet, "compliance/metrics", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
