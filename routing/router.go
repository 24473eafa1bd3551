package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/openapi"
)

// ErrRouteExists is returned when a method and path are registered twice.
var ErrRouteExists = errors.New("route already registered")

// Option configures a Router.
type Option func(*Router) error

// WithLogger sets the logger for request failures. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) error {
		if logger == nil {
			return errors.New("nil logger")
		}

		r.logger = logger

		return nil
	}
}

// WithViolationDetails exposes the description of a violated postcondition in the 500
// response. Off by default; a postcondition failure is a defect of the service.
func WithViolationDetails(expose bool) Option {
	return func(r *Router) error {
		r.exposeViolations = expose
		return nil
	}
}

// WithMiddleware adds middlewares, run after RequestID in the given order.
func WithMiddleware(middlewares ...func(http.Handler) http.Handler) Option {
	return func(r *Router) error {
		r.middlewares = append(r.middlewares, middlewares...)
		return nil
	}
}

// RouteOption configures a route registered with Handle.
type RouteOption func(*openapi.Route)

// OperationID sets the operation id. The default is derived from method and path.
func OperationID(id string) RouteOption {
	return func(route *openapi.Route) { route.OperationID = id }
}

// Summary sets the operation summary.
func Summary(summary string) RouteOption {
	return func(route *openapi.Route) { route.Summary = summary }
}

// ExcludeFromSchema keeps the route out of the OpenAPI document.
func ExcludeFromSchema() RouteOption {
	return func(route *openapi.Route) { route.IncludeInSchema = false }
}

// Router dispatches requests to endpoints over chi and keeps the route table the schema is
// generated from. Register every route before serving; chi does not support concurrent
// registration and dispatch.
type Router struct {
	mux              *chi.Mux
	logger           *slog.Logger
	exposeViolations bool
	middlewares      []func(http.Handler) http.Handler

	mu        sync.RWMutex
	routes    []openapi.Route
	handlers  map[string]bool
	version   uint64
	schemaURL string
}

// NewRouter creates a Router. Every request passes the RequestID middleware.
func NewRouter(opts ...Option) (*Router, error) {
	r := &Router{
		mux:      chi.NewRouter(),
		logger:   slog.Default(),
		handlers: make(map[string]bool),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.mux.Use(RequestID)
	r.mux.Use(r.middlewares...)

	r.mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteProblem(w, req, &Problem{Status: http.StatusNotFound, Detail: "Not Found"})
	})
	r.mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteProblem(w, req, &Problem{Status: http.StatusMethodNotAllowed, Detail: "Method Not Allowed"})
	})

	return r, nil
}

// Handle registers ep for method and path. Path uses chi patterns, e.g. "/books/{category}".
// A schema-included endpoint whose chain can not be inspected is rejected with the
// *contracts.ConfigError of the walk.
func (r *Router) Handle(method, path string, ep contracts.Endpoint, opts ...RouteOption) error {
	if ep == nil {
		return fmt.Errorf("route %s %s: %w", method, path, contracts.ErrNilEndpoint)
	}

	route := openapi.Route{
		Method:          strings.ToUpper(method),
		Path:            path,
		Endpoint:        ep,
		IncludeInSchema: true,
	}
	for _, opt := range opts {
		opt(&route)
	}

	if route.IncludeInSchema {
		if _, err := contracts.Inspect(ep); err != nil {
			return fmt.Errorf("route %s %s: %w", route.Method, path, err)
		}
	}

	if err := r.register(route.Method, path, r.serveEndpoint(ep)); err != nil {
		return err
	}

	r.mu.Lock()
	r.routes = append(r.routes, route)
	r.version++
	r.mu.Unlock()

	r.logger.Debug("routing: endpoint registered", "method", route.Method, "path", path)

	return nil
}

// HandleFunc registers a plain handler that is not part of the schema.
func (r *Router) HandleFunc(method, path string, h http.HandlerFunc) error {
	return r.register(strings.ToUpper(method), path, h)
}

// HasRoute reports whether method and path are registered.
func (r *Router) HasRoute(method, path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.handlers[routeKey(strings.ToUpper(method), path)]
}

// Routes implements openapi.RouteTable.
func (r *Router) Routes() []openapi.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]openapi.Route(nil), r.routes...)
}

// Version implements openapi.RouteTable.
func (r *Router) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.version
}

// ServeSchema serves the document of annotator as JSON at path and as YAML at the same path
// with a .yaml extension. path becomes the router's schema URL.
func (r *Router) ServeSchema(path string, annotator *openapi.Annotator) error {
	if annotator == nil {
		return errors.New("nil annotator")
	}

	yamlPath := strings.TrimSuffix(path, ".json") + ".yaml"

	err := r.HandleFunc(http.MethodGet, path, func(w http.ResponseWriter, req *http.Request) {
		doc, err := annotator.Document(req.Context())
		r.writeSchema(w, req, openapi.ContentTypeJSON, doc, err)
	})
	if err != nil {
		return err
	}

	err = r.HandleFunc(http.MethodGet, yamlPath, func(w http.ResponseWriter, req *http.Request) {
		doc, err := annotator.YAML(req.Context())
		r.writeSchema(w, req, "application/yaml", doc, err)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.schemaURL = path
	r.mu.Unlock()

	return nil
}

// SchemaURL returns the path the schema is served at, or "" if ServeSchema was not called.
func (r *Router) SchemaURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.schemaURL
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register(method, path string, h http.HandlerFunc) error {
	key := routeKey(method, path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handlers[key] {
		return fmt.Errorf("%w: %s", ErrRouteExists, key)
	}

	r.mux.MethodFunc(method, path, h)
	r.handlers[key] = true

	return nil
}

func (r *Router) serveEndpoint(ep contracts.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		args, err := Bind(req, ep.Signature())
		if err != nil {
			WriteProblem(w, req, problemFor(err, r.exposeViolations, r.logger, req))
			return
		}

		result, err := contracts.Run(req.Context(), ep, args)
		if err != nil {
			WriteProblem(w, req, problemFor(err, r.exposeViolations, r.logger, req))
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func (r *Router) writeSchema(w http.ResponseWriter, req *http.Request, contentType string, doc []byte, err error) {
	if err != nil {
		r.logger.ErrorContext(req.Context(), "routing: schema generation failed", "error", err.Error())
		WriteProblem(w, req, &Problem{Status: http.StatusInternalServerError})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", openapi.ContentTypeJSON)
	w.WriteHeader(status)
	_ = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(v)
}

func routeKey(method, path string) string {
	return method + " " + path
}
