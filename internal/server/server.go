package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"laborguard/internal/domain"
	"laborguard/internal/engine"
	"laborguard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"risk_critical"`
	Message string         `json:"message" example:"worker at critical risk"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the LaborGuard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("LaborGuard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerWorkers(group, cfg.Engine)
	registerClients(group, cfg.Engine)
	registerAllocations(group, cfg.Engine)
	registerOperations(group, cfg.Engine)
	registerCompliance(group, cfg.Engine)
	registerAutonomy(group, cfg.Engine)
	registerRisk(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"role": fe.Role})
	}
	var rb engine.RiskBlockedError
	if errors.As(err, &rb) {
		return newAPIError(http.StatusUnprocessableEntity, "risk_critical", err.Error(), map[string]any{
			"score":              rb.Risk.Score,
			"level":              rb.Risk.Level,
			"consecutive_days":   rb.Risk.ConsecutiveDays,
			"days_in_month":      rb.Risk.DaysInMonth,
			"months_with_client": rb.Risk.MonthsWithClient,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "blocked"),
		strings.Contains(lowered, "already"),
		strings.Contains(lowered, "does not match"),
		strings.Contains(lowered, "must be"),
		strings.Contains(lowered, "not in_progress"),
		strings.Contains(lowered, "only the operation leader"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "unknown") || strings.Contains(lowered, "not allowed") ||
		strings.Contains(lowered, "parsing time"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>LaborGuard API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerWorkers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-worker",
		Method:        http.MethodPost,
		Path:          "/workers/register",
		Summary:       "Self-service worker registration",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterWorkerRequest `json:"body"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		w, err := e.RegisterWorker(ctx, engine.WorkerRegistration{
			FullName:    input.Body.FullName,
			CPF:         input.Body.CPF,
			DateOfBirth: input.Body.DateOfBirth,
			MotherName:  input.Body.MotherName,
			Phone:       input.Body.Phone,
			Email:       input.Body.Email,
			City:        input.Body.City,
			State:       input.Body.State,
			PixKey:      input.Body.PixKey,
			PixKeyType:  input.Body.PixKeyType,
			WorkerType:  input.Body.WorkerType,
			DailyRate:   input.Body.DailyRate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workers",
		Method:      http.MethodGet,
		Path:        "/workers",
		Summary:     "List workers",
	}, func(ctx context.Context, input *struct {
		Status             string `query:"status" enum:"inactive,active,blocked"`
		RegistrationStatus string `query:"registration_status" enum:"pending,approved,rejected"`
	}) (*struct {
		Body []domain.Worker `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListWorkers(ctx, repo.WorkerFilters{
			Status:             input.Status,
			RegistrationStatus: input.RegistrationStatus,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Worker `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-workers",
		Method:      http.MethodGet,
		Path:        "/workers/pending",
		Summary:     "List pending registrations",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Worker `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.PendingWorkers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Worker `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-worker",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}",
		Summary:     "Get worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		w, err := e.Worker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-worker",
		Method:      http.MethodPost,
		Path:        "/workers/{worker_id}/approve",
		Summary:     "Approve a pending registration",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.ApproveWorker(ctx, input.WorkerID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-worker",
		Method:      http.MethodPost,
		Path:        "/workers/{worker_id}/reject",
		Summary:     "Reject a pending registration",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
		Body     RejectWorkerRequest `json:"body"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		w, err := e.RejectWorker(ctx, input.WorkerID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-risk",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}/risk",
		Summary:     "Composite risk profile for one worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body domain.WorkerRisk `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		row, err := e.WorkerRiskProfile(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkerRisk `json:"body"`
		}{Body: row}, nil
	})
}

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		c, err := e.CreateClient(ctx, input.Body.CompanyName, input.Body.CNPJ)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListClients(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-location",
		Method:        http.MethodPost,
		Path:          "/locations",
		Summary:       "Create work location",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateLocationRequest `json:"body"`
	}) (*struct {
		Body domain.Location `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		l, err := e.CreateLocation(ctx, input.Body.ClientID, input.Body.LocationName, input.Body.City)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Location `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-locations",
		Method:      http.MethodGet,
		Path:        "/locations",
		Summary:     "List work locations",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
	}) (*struct {
		Body []domain.Location `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListLocations(ctx, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Location `json:"body"`
		}{Body: items}, nil
	})
}

func registerAllocations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-allocation",
		Method:        http.MethodPost,
		Path:          "/allocations",
		Summary:       "Allocate a worker through the risk gate",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAllocationRequest `json:"body"`
	}) (*struct {
		Body engine.AllocationResult `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		res, err := e.CreateAllocation(ctx, engine.AllocationOptions{
			WorkerID:    input.Body.WorkerID,
			ClientID:    input.Body.ClientID,
			LocationID:  input.Body.LocationID,
			WorkDate:    input.Body.WorkDate,
			JobFunction: input.Body.JobFunction,
			DailyRate:   input.Body.DailyRate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AllocationResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-allocations",
		Method:      http.MethodGet,
		Path:        "/allocations",
		Summary:     "List allocations",
	}, func(ctx context.Context, input *struct {
		WorkerID string `query:"worker_id"`
		ClientID string `query:"client_id"`
		WorkDate string `query:"work_date"`
		Status   string `query:"status" enum:"scheduled,in_progress,completed"`
	}) (*struct {
		Body []domain.Allocation `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAllocations(ctx, repo.AllocationFilters{
			WorkerID: input.WorkerID,
			ClientID: input.ClientID,
			WorkDate: input.WorkDate,
			Status:   input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Allocation `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suggest-workers",
		Method:      http.MethodGet,
		Path:        "/allocations/suggest",
		Summary:     "Suggest workers by ascending risk",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ClientID   string `query:"client_id" required:"true"`
		LocationID string `query:"location_id" required:"true"`
		Quantity   int    `query:"quantity"`
	}) (*struct {
		Body []engine.WorkerSuggestion `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.SuggestWorkers(ctx, input.ClientID, input.LocationID, input.Quantity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.WorkerSuggestion `json:"body"`
		}{Body: items}, nil
	})
}

func registerOperations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-operation",
		Method:        http.MethodPost,
		Path:          "/operations",
		Summary:       "Create operation with invited crew",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateOperationRequest `json:"body"`
	}) (*struct {
		Body engine.OperationDetail `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		members := make([]engine.OperationMemberInput, 0, len(input.Body.Members))
		for _, m := range input.Body.Members {
			members = append(members, engine.OperationMemberInput{
				WorkerID:    m.WorkerID,
				JobFunction: m.JobFunction,
				DailyRate:   m.DailyRate,
			})
		}
		detail, err := e.CreateOperation(ctx, engine.OperationOptions{
			ClientID:      input.Body.ClientID,
			LocationID:    input.Body.LocationID,
			LeaderID:      input.Body.LeaderID,
			OperationName: input.Body.OperationName,
			WorkDate:      input.Body.WorkDate,
			Description:   input.Body.Description,
			ActorID:       actorID,
			Members:       members,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.OperationDetail `json:"body"`
		}{Body: detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-operations",
		Method:      http.MethodGet,
		Path:        "/operations",
		Summary:     "List operations",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
		Status   string `query:"status" enum:"created,in_progress,completed"`
		WorkDate string `query:"work_date"`
		LeaderID string `query:"leader_id"`
	}) (*struct {
		Body []domain.Operation `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListOperations(ctx, repo.OperationFilters{
			ClientID: input.ClientID,
			Status:   input.Status,
			WorkDate: input.WorkDate,
			LeaderID: input.LeaderID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Operation `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-operation",
		Method:      http.MethodGet,
		Path:        "/operations/{operation_id}",
		Summary:     "Get operation with crew",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OperationID string `path:"operation_id"`
	}) (*struct {
		Body engine.OperationDetail `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		detail, err := e.Operation(ctx, input.OperationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.OperationDetail `json:"body"`
		}{Body: detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-operation",
		Method:      http.MethodPost,
		Path:        "/operations/members/{member_id}/accept",
		Summary:     "Accept invitation, gated on the worker's CPF",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MemberID string `path:"member_id"`
		Body     AcceptOperationRequest `json:"body"`
	}) (*struct {
		Body domain.OperationMember `json:"body"`
	}, error) {
		m, err := e.AcceptOperation(ctx, input.MemberID, input.Body.CPF, input.Body.IP)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OperationMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-operation",
		Method:      http.MethodPost,
		Path:        "/operations/{operation_id}/start",
		Summary:     "Start operation (leader only)",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		OperationID string `path:"operation_id"`
	}) (*struct {
		Body domain.Operation `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		op, err := e.StartOperation(ctx, input.OperationID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Operation `json:"body"`
		}{Body: op}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-operation",
		Method:      http.MethodPost,
		Path:        "/operations/{operation_id}/complete",
		Summary:     "Complete operation (leader only)",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		OperationID string `path:"operation_id"`
	}) (*struct {
		Body domain.Operation `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		op, err := e.CompleteOperation(ctx, input.OperationID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Operation `json:"body"`
		}{Body: op}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-in-member",
		Method:      http.MethodPost,
		Path:        "/operations/members/{member_id}/check-in",
		Summary:     "Check a crew member in",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MemberID string `path:"member_id"`
	}) (*struct {
		Body domain.OperationMember `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.CheckInMember(ctx, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OperationMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-out-member",
		Method:      http.MethodPost,
		Path:        "/operations/members/{member_id}/check-out",
		Summary:     "Check a crew member out",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MemberID string `path:"member_id"`
		Body     CheckOutRequest `json:"body"`
	}) (*struct {
		Body domain.OperationMember `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.CheckOutMember(ctx, input.MemberID, engine.CheckOutOptions{
			TookMeal: input.Body.TookMeal,
			UsedEPI:  input.Body.UsedEPI,
			Notes:    input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OperationMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "report-incident",
		Method:        http.MethodPost,
		Path:          "/operations/{operation_id}/incidents",
		Summary:       "Report an incident, auto-blocking when the type demands it",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OperationID string `path:"operation_id"`
		Body        ReportIncidentRequest `json:"body"`
	}) (*struct {
		Body engine.IncidentResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ReportIncident(ctx, engine.IncidentOptions{
			OperationID:  input.OperationID,
			MemberID:     input.Body.MemberID,
			IncidentType: input.Body.IncidentType,
			Severity:     input.Body.Severity,
			Description:  input.Body.Description,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.IncidentResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-incidents",
		Method:      http.MethodGet,
		Path:        "/operations/{operation_id}/incidents",
		Summary:     "List incidents for an operation",
	}, func(ctx context.Context, input *struct {
		OperationID string `path:"operation_id"`
	}) (*struct {
		Body []domain.OperationIncident `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Incidents(ctx, input.OperationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.OperationIncident `json:"body"`
		}{Body: items}, nil
	})
}

func registerCompliance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "blocked-workers",
		Method:      http.MethodGet,
		Path:        "/compliance/blocked",
		Summary:     "List blocked workers",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Worker `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.BlockedWorkers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Worker `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "block-history",
		Method:      http.MethodGet,
		Path:        "/compliance/workers/{worker_id}/history",
		Summary:     "Block ledger for one worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body []domain.BlockEntry `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.BlockHistory(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.BlockEntry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "block-worker",
		Method:      http.MethodPost,
		Path:        "/compliance/workers/{worker_id}/block",
		Summary:     "Block a worker",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
		Body     BlockWorkerRequest `json:"body"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.BlockWorker(ctx, engine.BlockOptions{
			WorkerID:  input.WorkerID,
			Reason:    input.Body.Reason,
			ActorID:   actorID,
			BlockType: input.Body.BlockType,
			Days:      input.Body.Days,
		}); err != nil {
			return nil, handleError(err)
		}
		w, err := e.Worker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unblock-worker",
		Method:      http.MethodPost,
		Path:        "/compliance/workers/{worker_id}/unblock",
		Summary:     "Unblock a worker",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
		Body     UnblockWorkerRequest `json:"body"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.UnblockWorker(ctx, input.WorkerID, input.Body.Reason, actorID); err != nil {
			return nil, handleError(err)
		}
		w, err := e.Worker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-expired-blocks",
		Method:      http.MethodPost,
		Path:        "/compliance/sweep",
		Summary:     "Release expired temporary blocks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Unblocked int `json:"unblocked"`
		} `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		n, err := e.SweepExpiredBlocks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Unblocked int `json:"unblocked"`
			} `json:"body"`
		}{}
		out.Body.Unblocked = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "consecutive-days",
		Method:      http.MethodGet,
		Path:        "/compliance/consecutive-days",
		Summary:     "Current membership streak for a worker and client",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		WorkerID string `query:"worker_id" required:"true"`
		ClientID string `query:"client_id" required:"true"`
	}) (*struct {
		Body struct {
			ConsecutiveDays int `json:"consecutive_days"`
		} `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		days, err := e.ConsecutiveDays(ctx, input.WorkerID, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				ConsecutiveDays int `json:"consecutive_days"`
			} `json:"body"`
		}{}
		out.Body.ConsecutiveDays = days
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "continuity-check",
		Method:      http.MethodPost,
		Path:        "/compliance/continuity-check",
		Summary:     "Enforce the consecutive-day rule for a worker and client",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ContinuityCheckRequest `json:"body"`
	}) (*struct {
		Body domain.ContinuityCheck `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.CheckContinuity(ctx, input.Body.WorkerID, input.Body.ClientID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContinuityCheck `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compliance-metrics",
		Method:      http.MethodGet,
		Path:        "/compliance/metrics",
		Summary:     "Fleet compliance totals",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.ComplianceMetrics `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.ComplianceMetrics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ComplianceMetrics `json:"body"`
		}{Body: m}, nil
	})
}

func registerAutonomy(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-refusal",
		Method:        http.MethodPost,
		Path:          "/autonomy/refusals",
		Summary:       "Record a work refusal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body RegisterRefusalRequest `json:"body"`
	}) (*struct {
		Body domain.Refusal `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ref, err := e.RegisterRefusal(ctx, engine.RefusalOptions{
			WorkerID:      input.Body.WorkerID,
			OperationID:   input.Body.OperationID,
			ClientID:      input.Body.ClientID,
			RefusalReason: input.Body.RefusalReason,
			RefusalType:   input.Body.RefusalType,
			RefusalDate:   input.Body.RefusalDate,
			Evidence:      input.Body.Evidence,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Refusal `json:"body"`
		}{Body: ref}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-autonomy",
		Method:      http.MethodGet,
		Path:        "/autonomy/workers/{worker_id}",
		Summary:     "Autonomy metrics for one worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body domain.AutonomyMetrics `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.AutonomyMetrics(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AutonomyMetrics `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-refusals",
		Method:      http.MethodGet,
		Path:        "/autonomy/workers/{worker_id}/refusals",
		Summary:     "Refusals recorded for one worker",
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body []domain.Refusal `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Refusals(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Refusal `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recompute-autonomy",
		Method:      http.MethodPost,
		Path:        "/autonomy/workers/{worker_id}/recompute",
		Summary:     "Recompute autonomy metrics from scratch",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body domain.AutonomyMetrics `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Worker(ctx, input.WorkerID); err != nil {
			return nil, handleError(err)
		}
		m, err := e.RecomputeAutonomyMetrics(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AutonomyMetrics `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "low-autonomy-workers",
		Method:      http.MethodGet,
		Path:        "/autonomy/low",
		Summary:     "Workers under the autonomy threshold",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.AutonomyMetrics `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.LowAutonomyWorkers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AutonomyMetrics `json:"body"`
		}{Body: items}, nil
	})
}

func registerRisk(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "fleet-risk",
		Method:      http.MethodGet,
		Path:        "/risk/fleet",
		Summary:     "Composite risk ranking for the whole fleet",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.WorkerRisk `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		rows, err := e.FleetRisk(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkerRisk `json:"body"`
		}{Body: rows}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "risk-statistics",
		Method:      http.MethodGet,
		Path:        "/risk/statistics",
		Summary:     "Headline risk statistics",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.RiskStatistics `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		stats, err := e.RiskStatistics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RiskStatistics `json:"body"`
		}{Body: stats}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Store a hashed API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body domain.APIKey `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		if input.Body.ActorID == "" || input.Body.Key == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and key are required", nil)
		}
		key := domain.APIKey{
			ID:      uuid.NewString(),
			ActorID: input.Body.ActorID,
			Name:    input.Body.Name,
			Roles:   input.Body.Roles,
			KeyHash: repo.HashAPIKey(input.Body.Key),
		}
		if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetAPIKeyByHash(ctx, key.KeyHash)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.APIKey `json:"body"`
		}{Body: stored}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{key_id}",
		Summary:     "Delete an API key",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		if err := requireRole(ctx, "admin"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
