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
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"gigline/internal/attach"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/logging"
	"gigline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *logrus.Logger
}

func (c Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Discard()
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insufficient_credits"`
	Message string         `json:"message" example:"insufficient credits: required 160, available 100"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"required\":160,\"available\":100}"`
}

// apiError is the error envelope every endpoint answers with.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// response wraps an operation's JSON body.
type response[T any] struct {
	Body T
}

func reply[T any](v T) *response[T] {
	return &response[T]{Body: v}
}

// New returns an HTTP handler exposing the gigline API under cfg.BasePath.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// schema failures are malformed requests, not domain validation
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	log := cfg.logger()
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, log))

	hcfg := huma.DefaultConfig("gigline API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAccounts(group, cfg.Engine)
	registerContracts(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerTickets(group, cfg.Engine)
	registerCompany(group, cfg.Engine)
	registerPayments(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerFileRoutes(router, basePath, cfg.Engine)
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

// handleError maps engine and store errors onto the envelope by type.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": ve.Field})
	}
	var ice engine.InsufficientCreditsError
	if errors.As(err, &ice) {
		return newAPIError(http.StatusPaymentRequired, "insufficient_credits", err.Error(), map[string]any{
			"required":  ice.Required,
			"available": ice.Available,
		})
	}
	var te engine.TransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"entity": te.Entity,
			"from":   te.From,
			"action": te.Action,
		})
	}
	var ge engine.ContractGateError
	if errors.As(err, &ge) {
		return newAPIError(http.StatusConflict, "contract_locked", err.Error(), map[string]any{"contract_id": ge.ContractID})
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var ue auth.UnknownActorError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	}
	var tle attach.TooLargeError
	if errors.As(err, &tle) {
		return newAPIError(http.StatusRequestEntityTooLarge, "validation_failed", err.Error(), map[string]any{"limit": tle.Limit})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "invalid_transition"
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

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			entry := log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			})
			switch {
			case ww.Status() >= 500:
				entry.Error("request failed")
			case ww.Status() >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request")
			}
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"error": {
									Type: "object",
									Properties: map[string]*huma.Schema{
										"code":    {Type: "string"},
										"message": {Type: "string"},
										"details": {Type: "object"},
									},
								},
							},
						},
					},
				},
			}
		}
	}
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
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>gigline API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt;.
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
	}, func(ctx context.Context, _ *struct{}) (*response[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerAccounts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-account",
		Method:        http.MethodPost,
		Path:          "/accounts",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateAccountRequest
	}) (*response[domain.Account], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAccount(ctx, engine.AccountCreateOptions{
			ID:          input.Body.ID,
			Role:        input.Body.Role,
			DisplayName: input.Body.DisplayName,
			Premium:     input.Body.Premium,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/accounts",
		Summary:     "List accounts",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role"`
	}) (*response[[]domain.Account], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.Auth.RequireAdmin(ctx, e.DB, actorID, "accounts.list"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListAccounts(ctx, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current account",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*response[domain.Account], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.GetAccount(ctx, actorID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "unknown actor", nil)
			}
			return nil, handleError(err)
		}
		return reply(a), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Event log, newest first",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ContractID int64  `query:"contractId"`
		Type       string `query:"type"`
		EntityKind string `query:"entityKind"`
		EntityID   string `query:"entityId"`
		Cursor     int64  `query:"cursor"`
		Limit      int    `query:"limit" minimum:"0" maximum:"200"`
	}) (*response[engine.EventPage], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page, err := e.ListEvents(ctx, repo.EventFilters{
			ContractID: input.ContractID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		}, input.Cursor, input.Limit, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(page), nil
	})
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
