package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"laborguard/internal/config"
	"laborguard/internal/db"
	"laborguard/internal/domain"
	"laborguard/internal/engine"
	"laborguard/internal/migrate"
	"laborguard/internal/repo"
)

const testJWTSecret = "server-test-secret"

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return testNow }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func signToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v: %s", err, string(data))
	}
	return env
}

var serverSeedSeq int

func seedServerWorker(t *testing.T, e engine.Engine) domain.Worker {
	t.Helper()
	serverSeedSeq++
	w := domain.Worker{
		ID:                 uuid.NewString(),
		FullName:           fmt.Sprintf("Worker %d", serverSeedSeq),
		CPF:                fmt.Sprintf("%011d", 10000000000+serverSeedSeq),
		DateOfBirth:        "1990-01-01",
		WorkerType:         "daily",
		DailyRate:          150,
		RegistrationStatus: "approved",
		Status:             "active",
		RiskLevel:          "low",
		CreatedAt:          testNow.Format(time.RFC3339),
	}
	if err := e.Repo.InsertWorker(context.Background(), w); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w
}

func seedServerClient(t *testing.T, e engine.Engine) domain.Client {
	t.Helper()
	serverSeedSeq++
	c := domain.Client{
		ID:          uuid.NewString(),
		CompanyName: fmt.Sprintf("Client %d", serverSeedSeq),
		CNPJ:        fmt.Sprintf("%014d", int64(10000000000000)+int64(serverSeedSeq)),
		CreatedAt:   testNow.Format(time.RFC3339),
	}
	if err := e.Repo.InsertClient(context.Background(), c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func seedServerLocation(t *testing.T, e engine.Engine, clientID string) domain.Location {
	t.Helper()
	serverSeedSeq++
	l := domain.Location{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		LocationName: fmt.Sprintf("Site %d", serverSeedSeq),
		CreatedAt:    testNow.Format(time.RFC3339),
	}
	if err := e.Repo.InsertLocation(context.Background(), l); err != nil {
		t.Fatalf("seed location: %v", err)
	}
	return l
}

func seedServerAllocation(t *testing.T, e engine.Engine, workerID, clientID, locationID, workDate string) {
	t.Helper()
	a := domain.Allocation{
		ID:          uuid.NewString(),
		WorkerID:    workerID,
		ClientID:    clientID,
		LocationID:  locationID,
		WorkDate:    workDate,
		JobFunction: "loader",
		DailyRate:   150,
		Status:      "scheduled",
		CreatedAt:   testNow.Format(time.RFC3339),
	}
	if err := e.Repo.InsertAllocation(context.Background(), nil, a); err != nil {
		t.Fatalf("seed allocation: %v", err)
	}
}

func TestWorkerRegistrationAndApproval(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// Registration is public.
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/workers/register", map[string]any{
		"full_name":     "Maria Souza",
		"cpf":           "529.982.247-25",
		"date_of_birth": "1992-03-10",
		"worker_type":   "daily",
		"daily_rate":    180,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Worker
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal worker: %v", err)
	}
	if created.RegistrationStatus != "pending" || created.Status != "inactive" {
		t.Fatalf("expected pending/inactive, got %s/%s", created.RegistrationStatus, created.Status)
	}

	admin := authHeaders(signToken(t, "admin-1", "admin"))
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/workers/pending", nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pending status %d: %s", res.StatusCode, string(data))
	}
	var pending []domain.Worker
	if err := json.Unmarshal(data, &pending); err != nil {
		t.Fatalf("unmarshal pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("expected the new worker pending, got %+v", pending)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/workers/"+created.ID+"/approve", nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}
	var approved domain.Worker
	if err := json.Unmarshal(data, &approved); err != nil {
		t.Fatalf("unmarshal approved: %v", err)
	}
	if approved.RegistrationStatus != "approved" || approved.Status != "active" {
		t.Fatalf("expected approved/active, got %s/%s", approved.RegistrationStatus, approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "admin-1" {
		t.Fatalf("expected approver admin-1, got %v", approved.ApprovedBy)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/workers", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", env.Error.Code)
	}
}

func TestAllocationGateRejectsCriticalOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	e := srv.Engine

	worker := seedServerWorker(t, e)
	cl := seedServerClient(t, e)
	loc := seedServerLocation(t, e, cl.ID)
	for i := 1; i <= 10; i++ {
		seedServerAllocation(t, e, worker.ID, cl.ID, loc.ID, testNow.AddDate(0, 0, -i).Format("2006-01-02"))
	}

	token := authHeaders(signToken(t, "dispatcher-1"))
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/allocations", map[string]any{
		"worker_id":    worker.ID,
		"client_id":    cl.ID,
		"location_id":  loc.ID,
		"work_date":    testNow.Format("2006-01-02"),
		"job_function": "loader",
	}, token)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Error.Code != "risk_critical" {
		t.Fatalf("expected risk_critical code, got %q", env.Error.Code)
	}
	if score, ok := env.Error.Details["score"].(float64); !ok || int(score) != 170 {
		t.Fatalf("expected score 170 in details, got %v", env.Error.Details)
	}
	if days, ok := env.Error.Details["consecutive_days"].(float64); !ok || int(days) != 10 {
		t.Fatalf("expected 10 consecutive days in details, got %v", env.Error.Details)
	}
}

func TestAllocationCreatedForFreshWorker(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	e := srv.Engine

	worker := seedServerWorker(t, e)
	cl := seedServerClient(t, e)
	loc := seedServerLocation(t, e, cl.ID)

	token := authHeaders(signToken(t, "dispatcher-1"))
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/allocations", map[string]any{
		"worker_id":    worker.ID,
		"client_id":    cl.ID,
		"location_id":  loc.ID,
		"work_date":    testNow.Format("2006-01-02"),
		"job_function": "loader",
		"daily_rate":   200,
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create allocation status %d: %s", res.StatusCode, string(data))
	}
	var result engine.AllocationResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Allocation.ConsecutiveDays != 1 || result.Allocation.DaysThisMonth != 1 {
		t.Fatalf("expected 1/1 stamp, got %d/%d", result.Allocation.ConsecutiveDays, result.Allocation.DaysThisMonth)
	}
	if result.Warning != "" {
		t.Fatalf("expected no warning, got %q", result.Warning)
	}
}

func TestBlockEndpointsRequireAdmin(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	e := srv.Engine
	worker := seedServerWorker(t, e)

	body := map[string]any{"reason": "manual review", "block_type": "permanent"}
	plain := authHeaders(signToken(t, "dispatcher-1"))
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/compliance/workers/"+worker.ID+"/block", body, plain)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden code, got %q", env.Error.Code)
	}

	admin := authHeaders(signToken(t, "admin-1", "admin"))
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/compliance/workers/"+worker.ID+"/block", body, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("block status %d: %s", res.StatusCode, string(data))
	}
	var blocked domain.Worker
	if err := json.Unmarshal(data, &blocked); err != nil {
		t.Fatalf("unmarshal blocked: %v", err)
	}
	if !blocked.IsBlocked || blocked.Status != "blocked" {
		t.Fatalf("expected blocked snapshot, got %+v", blocked)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/compliance/workers/"+worker.ID+"/unblock", map[string]any{
		"reason": "cleared after review",
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unblock status %d: %s", res.StatusCode, string(data))
	}
	var unblocked domain.Worker
	if err := json.Unmarshal(data, &unblocked); err != nil {
		t.Fatalf("unmarshal unblocked: %v", err)
	}
	if unblocked.IsBlocked || unblocked.Status != "active" {
		t.Fatalf("expected clean snapshot, got %+v", unblocked)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/compliance/workers/"+worker.ID+"/history", nil, plain)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var history []domain.BlockEntry
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(history))
	}
}

func TestAPIKeyAuthenticatesSweep(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	e := srv.Engine

	rawKey := "lg-test-key-123"
	if err := e.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:      uuid.NewString(),
		ActorID: "scheduler",
		Name:    "cron",
		KeyHash: repo.HashAPIKey(rawKey),
	}); err != nil {
		t.Fatalf("insert api key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/compliance/sweep", nil, map[string]string{
		"X-Api-Key": rawKey,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sweep status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Unblocked int `json:"unblocked"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal sweep: %v", err)
	}
	if out.Unblocked != 0 {
		t.Fatalf("expected nothing to unblock, got %d", out.Unblocked)
	}
}

func TestLegacyActorHeaderHasNoRoles(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	headers := map[string]string{"X-Actor-Id": "legacy-ops"}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/workers", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list workers via legacy header status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/risk/fleet", nil, headers)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for legacy header on admin endpoint, got %d: %s", res.StatusCode, string(data))
	}
}
