package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"assetline/internal/engine"
	"assetline/internal/idempotency"
	"assetline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	// Guard deduplicates request creation by Idempotency-Key. Nil disables it.
	Guard idempotency.Guard
	Log   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"request r1 is Reject; cannot return items"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the {"error": {...}} envelope every failure is rendered as.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

var (
	authenticated = []map[string][]string{{"bearerAuth": {}}, {"apiKeyAuth": {}}}
	anonymous     = []map[string][]string{}
)

var kindStatus = map[engine.Kind]struct {
	status int
	code   string
}{
	engine.KindNotFound:     {http.StatusNotFound, "not_found"},
	engine.KindForbidden:    {http.StatusForbidden, "forbidden"},
	engine.KindInvalidState: {http.StatusConflict, "invalid_state"},
	engine.KindBadRequest:   {http.StatusBadRequest, "bad_request"},
}

type handlers struct {
	engine engine.Engine
	guard  idempotency.Guard
	auth   AuthConfig
	log    *zap.Logger
}

// New returns an HTTP handler exposing the Assetline API under BasePath. The
// OpenAPI document is served at /openapi.json and rendered at /docs.
func New(cfg Config) (http.Handler, error) {
	basePath := "/" + strings.Trim(cfg.BasePath, "/")
	if basePath == "/" {
		basePath = "/v0"
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return validationError(status, msg, errs)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return validationError(status, msg, errs)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo, log))

	hcfg := huma.DefaultConfig("Assetline API", "0.1.0")
	hcfg.Info.Description = "Borrow requests for shared inventory with two-stage approval."
	hcfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		"apiKeyAuth": {Type: "apiKey", In: "header", Name: "X-Api-Key"},
	}
	hcfg.Security = authenticated
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{engine: cfg.Engine, guard: cfg.Guard, auth: cfg.Auth, log: log}
	registerHealth(group)
	h.registerRequests(group)
	h.registerApprovals(group)
	h.registerItems(group)
	h.registerMe(group)
	h.registerEvents(group)
	if cfg.Auth.DevLogin {
		h.registerDevAuth(group)
	}
	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message, Details: details}}
}

// validationError renders huma's own request validation failures. They are
// reported as 400 bad_request like engine-level input errors.
func validationError(status int, msg string, errs []error) huma.StatusError {
	var details map[string]any
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		details = map[string]any{"errors": msgs}
	}
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	if status == http.StatusBadRequest {
		return newAPIError(status, "bad_request", msg, details)
	}
	return newAPIError(status, "", msg, details)
}

// handleError maps engine failures onto the error envelope. Anything that is
// not a classified engine error is logged and reported as an opaque 500.
func handleError(log *zap.Logger, err error) huma.StatusError {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		if m, ok := kindStatus[engErr.Kind]; ok {
			return newAPIError(m.status, m.code, err.Error(), errorDetails(engErr))
		}
	}
	switch {
	case errors.Is(err, idempotency.ErrDuplicate):
		return newAPIError(http.StatusConflict, "duplicate_request", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	log.Error("internal error", zap.Error(err))
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func errorDetails(e *engine.Error) map[string]any {
	details := map[string]any{}
	if e.Field != "" {
		details["field"] = e.Field
	}
	if e.ID != "" {
		details["id"] = e.ID
	}
	if e.Status != "" {
		details["status"] = string(e.Status)
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Security:    anonymous,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func normalizeLimit(in int) int {
	switch {
	case in <= 0:
		return 50
	case in > 500:
		return 500
	default:
		return in
	}
}
