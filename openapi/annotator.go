package openapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gowebpki/jcs"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

// ErrOperationNotFound is returned when a route has no operation in the document being annotated.
var ErrOperationNotFound = errors.New("operation not found in document")

// Option configures an Annotator.
type Option func(*Annotator) error

// WithCache replaces the default MemoryCache.
func WithCache(cache Cache) Option {
	return func(a *Annotator) error {
		if cache == nil {
			return errors.New("nil cache")
		}

		a.cache = cache

		return nil
	}
}

// WithLogger sets the logger for cache failures. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Annotator) error {
		if logger == nil {
			return errors.New("nil logger")
		}

		a.logger = logger

		return nil
	}
}

// WithExtensionValidation validates every generated extension against its JSON Schema
// before the document is cached.
func WithExtensionValidation() Option {
	return func(a *Annotator) error {
		v, err := newExtensionValidator()
		if err != nil {
			return err
		}

		a.validator = v

		return nil
	}
}

// Annotator produces the OpenAPI document of a route table with the contracts of every
// route attached as the x-contracts and x-snapshots extensions.
//
// The document is rendered as canonical JSON (RFC 8785), so an unchanged route table always
// yields byte-identical output. Rendered documents are cached under the Fingerprint of the
// route table, so annotators of different tables can share one cache. The routes and their
// fingerprint are read once per route table version.
type Annotator struct {
	table     RouteTable
	info      Info
	cache     Cache
	validator *extensionValidator
	logger    *slog.Logger

	mu sync.Mutex

	snapMu sync.Mutex
	snap   *tableSnapshot
}

type tableSnapshot struct {
	version     uint64
	routes      []Route
	fingerprint string
}

// NewAnnotator creates an Annotator for table.
func NewAnnotator(table RouteTable, info Info, opts ...Option) (*Annotator, error) {
	if table == nil {
		return nil, errors.New("nil route table")
	}

	a := &Annotator{
		table:  table,
		info:   info,
		cache:  NewMemoryCache(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Document returns the annotated document as canonical JSON.
// Cache failures are logged and treated as misses.
func (a *Annotator) Document(ctx context.Context) ([]byte, error) {
	snap, err := a.snapshot()
	if err != nil {
		return nil, err
	}

	key := a.cacheKey(snap.fingerprint)

	if doc, ok := a.cached(ctx, key); ok {
		return doc, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check: another caller might have rendered it while we were waiting.
	if doc, ok := a.cached(ctx, key); ok {
		return doc, nil
	}

	doc, err := a.render(snap.routes)
	if err != nil {
		return nil, err
	}

	if err := a.cache.Set(ctx, key, doc); err != nil {
		a.logger.WarnContext(ctx, "openapi: schema cache write failed", "key", key, "error", err.Error())
	}

	return doc, nil
}

// YAML returns the annotated document as YAML with sorted keys.
func (a *Annotator) YAML(ctx context.Context) ([]byte, error) {
	doc, err := a.Document(ctx)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := yaml.Unmarshal(doc, &generic); err != nil {
		return nil, fmt.Errorf("openapi yaml decode failed: %w", err)
	}

	return yaml.Marshal(generic)
}

// Invalidate drops every memoized document and forces the route table to be read again.
func (a *Annotator) Invalidate(ctx context.Context) error {
	a.snapMu.Lock()
	a.snap = nil
	a.snapMu.Unlock()

	return a.cache.Clear(ctx)
}

func (a *Annotator) snapshot() (*tableSnapshot, error) {
	version := a.table.Version()

	a.snapMu.Lock()
	defer a.snapMu.Unlock()

	if a.snap != nil && a.snap.version == version {
		return a.snap, nil
	}

	routes := a.table.Routes()

	fingerprint, err := Fingerprint(routes)
	if err != nil {
		return nil, err
	}

	a.snap = &tableSnapshot{version: version, routes: routes, fingerprint: fingerprint}

	return a.snap, nil
}

func (a *Annotator) cached(ctx context.Context, key string) ([]byte, bool) {
	doc, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "openapi: schema cache read failed", "key", key, "error", err.Error())
		return nil, false
	}

	return doc, ok
}

func (a *Annotator) cacheKey(fingerprint string) string {
	return a.info.Title + "@" + a.info.Version + "/" + fingerprint
}

func (a *Annotator) render(routes []Route) ([]byte, error) {
	table := staticTable(routes)

	doc, err := Generate(table, a.info)
	if err != nil {
		return nil, err
	}

	if err := Annotate(doc, routes); err != nil {
		return nil, err
	}

	generic, err := doc.generic()
	if err != nil {
		return nil, fmt.Errorf("openapi document conversion failed: %w", err)
	}

	if a.validator != nil {
		if err := a.validator.validate(generic); err != nil {
			return nil, err
		}
	}

	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("openapi json encode failed: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi canonicalization failed: %w", err)
	}

	return canonical, nil
}

// Annotate attaches the contracts of every schema-included route to its operation in doc.
// A route whose chain can not be walked fails with contracts.ErrOpaqueEndpoint or
// contracts.ErrSignatureMismatch.
func Annotate(doc *Document, routes []Route) error {
	for _, route := range routes {
		if !route.IncludeInSchema {
			continue
		}

		found, err := contracts.Inspect(route.Endpoint)
		if err != nil {
			return fmt.Errorf("route %s %s: %w", route.Method, route.Path, err)
		}

		path := SchemaPath(route.Path)
		item, ok := doc.Paths[path]
		var op *Operation
		if ok {
			op = item.Operation(route.Method)
		}
		if op == nil {
			return fmt.Errorf("%w: %s %s", ErrOperationNotFound, route.Method, path)
		}

		if found.Empty() {
			continue
		}

		if op.Extensions == nil {
			op.Extensions = make(map[string]any)
		}

		op.Extensions[ExtensionContracts] = contractExtensions(found)
		if len(found.Snapshots) > 0 {
			op.Extensions[ExtensionSnapshots] = snapshotExtensions(found)
		}

		addViolationResponses(op, found)
	}

	return nil
}

// addViolationResponses documents the responses an enforced contract can cause.
func addViolationResponses(op *Operation, found contracts.Contracts) {
	for _, m := range found.Contracts {
		if !m.Enforced {
			continue
		}

		code := http.StatusInternalServerError
		if m.Kind == contracts.KindPrecondition && m.StatusCode != nil {
			code = *m.StatusCode
		}

		key := strconv.Itoa(code)
		if _, exists := op.Responses[key]; exists {
			continue
		}

		op.Responses[key] = problemResponse(http.StatusText(code))
	}
}

type staticTable []Route

func (t staticTable) Routes() []Route { return t }
func (t staticTable) Version() uint64 { return 0 }
