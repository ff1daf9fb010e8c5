package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gatherly/internal/engine"
	"gatherly/internal/engine/auth"
	"gatherly/internal/repo"
	"gatherly/internal/telemetry"
	"gatherly/internal/validate"
)

const DefaultBasePath = "/api"

// Config for the HTTP API handler.
type Config struct {
	Engine    engine.Engine
	BasePath  string
	Logger    *slog.Logger
	Validator *validate.Validator
}

type bodyBytesKey struct{}

// envelope is the shape of every response body.
type envelope[T any] struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type output[T any] struct {
	Body envelope[T]
}

func reply[T any](msg string, data T) *output[T] {
	return &output[T]{Body: envelope[T]{Status: "success", Message: msg, Data: data}}
}

// noData is the payload of responses that carry nothing.
func noData() []any { return []any{} }

// apiError is the error envelope; Data is always an empty list.
type apiError struct {
	status  int
	Status  string `json:"status" example:"error"`
	Message string `json:"message"`
	Data    []any  `json:"data"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Status: "error", Message: message, Data: []any{}}
}

// humaError folds Huma's own request errors into the envelope. Detail
// messages of a 422 are joined like ours.
func humaError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity && len(errs) > 0 {
		parts := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				parts = append(parts, err.Error())
			}
		}
		if len(parts) > 0 {
			msg = strings.Join(parts, " ")
		}
	}
	return newAPIError(status, msg)
}

// New returns an HTTP handler exposing the Gatherly API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v := cfg.Validator
	if v == nil {
		v = validate.New(cfg.Engine.Now)
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return humaError(status, msg, errs...)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return humaError(status, msg, errs...)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(telemetry.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Engine, logger))
	hcfg := huma.DefaultConfig("Gatherly API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{engine: cfg.Engine, validator: v, logger: logger}
	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, h)
	registerAccount(group, h)
	registerUserEvents(group, h)
	registerParticipants(group, h)
	registerTasks(group, h)
	registerInvitations(group, h)
	registerEvents(group, h)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

type handlers struct {
	engine    engine.Engine
	validator *validate.Validator
	logger    *slog.Logger
}

// fail maps an engine error to the envelope. notFound is the route's message
// for the absent outcome.
func (h handlers) fail(ctx context.Context, op string, err error, notFound string) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var verrs validate.Errors
	switch {
	case errors.As(err, &verrs):
		return newAPIError(http.StatusUnprocessableEntity, verrs.Error())
	case errors.Is(err, engine.ErrSelfInvite):
		return newAPIError(http.StatusUnprocessableEntity, invitationMessages["email.self"])
	case errors.Is(err, engine.ErrInvalidInput):
		return newAPIError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrInvalidCredentials):
		return newAPIError(http.StatusUnauthorized, "Invalid email or password.")
	case errors.Is(err, auth.ErrInvalidToken):
		return newAPIError(http.StatusUnauthorized, unauthenticated)
	case errors.Is(err, repo.ErrNotFound):
		if notFound == "" {
			notFound = "Not found."
		}
		return newAPIError(http.StatusNotFound, notFound)
	}
	h.logger.ErrorContext(ctx, "operation failed", "operation", op, "error", err, "request_id", middleware.GetReqID(ctx))
	return newAPIError(http.StatusInternalServerError, err.Error())
}

// check validates a request and folds in extra messages produced by store
// lookups.
func (h handlers) check(s any, msgs validate.Messages, extra ...string) error {
	errs := h.validator.Check(s, msgs)
	errs = append(errs, extra...)
	return errs.Err()
}

// userExists reports whether id names a live user.
func (h handlers) userExists(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return true, nil
	}
	_, err := h.engine.GetUser(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// emailOwner returns the id of the live user registered under email, or 0.
func (h handlers) emailOwner(ctx context.Context, email string) (int64, error) {
	if strings.TrimSpace(email) == "" {
		return 0, nil
	}
	u, err := h.engine.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return u.ID, nil
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
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	public := publicPaths(basePath)
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Gatherly API Docs</title>
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
      Log in through POST %s/login and authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL, basePath)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"health"},
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return reply("Service is healthy.", map[string]string{"status": "ok"}), nil
	})
}
