package openapi_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/openapi"
	"github.com/AntonStoeckl/endpoint-contracts-go/testutil/testdoubles"
)

type book struct {
	Identifier string   `json:"identification"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Category   string   `json:"category,omitempty"`
}

// countingTable is a RouteTable that counts how often its routes are read.
type countingTable struct {
	mu      sync.Mutex
	routes  []openapi.Route
	version uint64
	reads   atomic.Int32
}

func (t *countingTable) Routes() []openapi.Route {
	t.reads.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]openapi.Route(nil), t.routes...)
}

func (t *countingTable) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.version
}

func (t *countingTable) add(route openapi.Route) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.routes = append(t.routes, route)
	t.version++
}

type opaque struct{ inner contracts.Endpoint }

func (o opaque) Signature() contracts.Signature { return o.inner.Signature() }
func (o opaque) Invoke(ctx context.Context, call *contracts.Call) (any, error) {
	return o.inner.Invoke(ctx, call)
}

func noop(context.Context, contracts.Args) (any, error) { return nil, nil }

func holds(contracts.Bindings) bool { return true }

func booksInCategory() contracts.Endpoint {
	sig := contracts.NewSignature(contracts.PathParam("category")).Returning(reflect.TypeFor[[]book]())

	return contracts.MustDecorate(
		contracts.Handle(sig, noop),
		contracts.Require(
			contracts.Predicate(holds, "category").WithText("has_category(category)"),
			contracts.StatusCode(http.StatusNotFound),
			contracts.Description("The category must exist."),
		),
		contracts.Snapshot(contracts.Sync(func(context.Context, contracts.Bindings) (any, error) {
			return 0, nil
		}).WithText("book_count()"), "count"),
		contracts.Ensure(
			contracts.Predicate(holds, contracts.ResultParam).WithText("all(b.category == category for b in result)"),
		),
	)
}

func upsertBook() contracts.Endpoint {
	sig := contracts.NewSignature(contracts.BodyParam[book]("book"))

	return contracts.MustDecorate(
		contracts.Handle(sig, noop),
		contracts.Require(contracts.Predicate(holds, "book"), contracts.Undocumented()),
	)
}

func newTable() *countingTable {
	table := &countingTable{}
	table.add(openapi.Route{
		Method: http.MethodGet, Path: "/books_in_category/{category}", Endpoint: booksInCategory(),
		Summary: "List books in a category", IncludeInSchema: true,
	})
	table.add(openapi.Route{
		Method: http.MethodPost, Path: "/upsert_book", OperationID: "upsert_book", Endpoint: upsertBook(),
		IncludeInSchema: true,
	})
	table.add(openapi.Route{
		Method: http.MethodGet, Path: "/internal", Endpoint: contracts.Handle(contracts.NewSignature(), noop),
	})

	return table
}

// categoryTable has a single route whose category precondition responds with status.
func categoryTable(status int, opts ...contracts.Option) *countingTable {
	sig := contracts.NewSignature(contracts.PathParam("category")).Returning(reflect.TypeFor[[]book]())
	opts = append([]contracts.Option{
		contracts.StatusCode(status),
		contracts.Description("The category must exist."),
	}, opts...)

	table := &countingTable{}
	table.add(openapi.Route{
		Method: http.MethodGet, Path: "/books_in_category/{category}", IncludeInSchema: true,
		Endpoint: contracts.MustDecorate(
			contracts.Handle(sig, noop),
			contracts.Require(contracts.Predicate(holds, "category"), opts...),
		),
	})

	return table
}

// failingCache fails every call.
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (failingCache) Set(context.Context, string, []byte) error         { return errCacheDown }
func (failingCache) Clear(context.Context) error                       { return errCacheDown }

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()

	var doc map[string]any
	require.NoError(t, jsoniter.Unmarshal(raw, &doc))

	return doc
}

func operation(t *testing.T, doc map[string]any, path, method string) map[string]any {
	t.Helper()

	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok, "paths missing")
	item, ok := paths[path].(map[string]any)
	require.True(t, ok, "path %s missing", path)
	op, ok := item[method].(map[string]any)
	require.True(t, ok, "operation %s %s missing", method, path)

	return op
}

func Test_Annotator_Document_ListsContractsInDecorationOrder(t *testing.T) {
	// arrange
	annotator, err := openapi.NewAnnotator(newTable(), openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	raw, err := annotator.Document(context.Background())

	// assert
	require.NoError(t, err)
	doc := decode(t, raw)
	assert.Equal(t, openapi.Version, doc["openapi"])

	op := operation(t, doc, "/books_in_category/{category}", "get")
	assert.Equal(t, "get_books_in_category_category", op["operationId"])

	entries, ok := op[openapi.ExtensionContracts].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)

	assert.Equal(t, map[string]any{
		"kind":        "precondition",
		"description": "The category must exist.",
		"status_code": float64(404),
		"enforced":    true,
		"text":        "has_category(category)",
	}, entries[0])
	assert.Equal(t, map[string]any{
		"kind":        "postcondition",
		"description": nil,
		"status_code": nil,
		"enforced":    true,
		"text":        "all(b.category == category for b in result)",
	}, entries[1])

	snapshots, ok := op[openapi.ExtensionSnapshots].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"name": "count", "enabled": true, "text": "book_count()"}}, snapshots)

	responses, ok := op["responses"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, responses, "200")
	assert.Contains(t, responses, "404")
	assert.Contains(t, responses, "422")
	assert.Contains(t, responses, "500")
}

func Test_Annotator_Document_UndocumentedContractsAndExcludedRoutesAreLeftOut(t *testing.T) {
	// arrange
	annotator, err := openapi.NewAnnotator(newTable(), openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	raw, err := annotator.Document(context.Background())

	// assert
	require.NoError(t, err)
	doc := decode(t, raw)

	op := operation(t, doc, "/upsert_book", "post")
	assert.NotContains(t, op, openapi.ExtensionContracts)
	assert.Contains(t, op, "requestBody")

	paths := doc["paths"].(map[string]any)
	assert.NotContains(t, paths, "/internal")
}

func Test_Annotator_Document_IsByteIdenticalAndMemoized(t *testing.T) {
	// arrange
	table := newTable()
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	first, err1 := annotator.Document(context.Background())
	second, err2 := annotator.Document(context.Background())

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), table.reads.Load(), "the document must be rendered once")
}

func Test_Annotator_Document_FreshAnnotatorsRenderIdenticalBytes(t *testing.T) {
	// arrange
	a1, err := openapi.NewAnnotator(newTable(), openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)
	a2, err := openapi.NewAnnotator(newTable(), openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	first, err1 := a1.Document(context.Background())
	second, err2 := a2.Document(context.Background())

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, string(first), string(second))
}

func Test_Annotator_Document_RerendersWhenTableChanges(t *testing.T) {
	// arrange
	table := newTable()
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	before, err := annotator.Document(context.Background())
	require.NoError(t, err)

	// act
	table.add(openapi.Route{
		Method: http.MethodGet, Path: "/book_count", Endpoint: contracts.Handle(contracts.NewSignature(), noop),
		IncludeInSchema: true,
	})
	after, err := annotator.Document(context.Background())

	// assert
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	operation(t, decode(t, after), "/book_count", "get")
	assert.Equal(t, int32(2), table.reads.Load())
}

func Test_Annotator_Invalidate_ForcesRerender(t *testing.T) {
	// arrange
	table := newTable()
	cache := openapi.NewMemoryCache()
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"}, openapi.WithCache(cache))
	require.NoError(t, err)

	_, err = annotator.Document(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	// act
	err = annotator.Invalidate(context.Background())
	_, docErr := annotator.Document(context.Background())

	// assert
	require.NoError(t, err)
	require.NoError(t, docErr)
	assert.Equal(t, int32(2), table.reads.Load())
}

func Test_Annotator_Document_ConcurrentCallersRenderOnce(t *testing.T) {
	// arrange
	table := newTable()
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, docErr := annotator.Document(context.Background())
			assert.NoError(t, docErr)
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), table.reads.Load())
}

func Test_Annotator_Document_SharedCacheKeepsTablesApart(t *testing.T) {
	// arrange
	cache := openapi.NewMemoryCache()
	info := openapi.Info{Title: "Books", Version: "1.0"}
	gone, err := openapi.NewAnnotator(categoryTable(http.StatusGone), info, openapi.WithCache(cache))
	require.NoError(t, err)
	missing, err := openapi.NewAnnotator(categoryTable(http.StatusNotFound), info, openapi.WithCache(cache))
	require.NoError(t, err)

	// act
	goneDoc, goneErr := gone.Document(context.Background())
	missingDoc, missingErr := missing.Document(context.Background())

	// assert
	require.NoError(t, goneErr)
	require.NoError(t, missingErr)
	assert.NotEqual(t, goneDoc, missingDoc)
	assert.Equal(t, 2, cache.Len())

	goneResponses := operation(t, decode(t, goneDoc), "/books_in_category/{category}", "get")["responses"]
	assert.Contains(t, goneResponses, "410")
	assert.NotContains(t, goneResponses, "404")

	missingResponses := operation(t, decode(t, missingDoc), "/books_in_category/{category}", "get")["responses"]
	assert.Contains(t, missingResponses, "404")
	assert.NotContains(t, missingResponses, "410")
}

func Test_Annotator_Document_CacheFailuresAreMisses(t *testing.T) {
	// arrange
	table := newTable()
	logSpy := testdoubles.NewLogHandlerSpy(false)
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"},
		openapi.WithCache(failingCache{}), openapi.WithLogger(slog.New(logSpy)))
	require.NoError(t, err)

	// act
	first, firstErr := annotator.Document(context.Background())
	second, secondErr := annotator.Document(context.Background())

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, first, second)
	operation(t, decode(t, first), "/upsert_book", "post")
	assert.True(t, logSpy.HasLog(slog.LevelWarn, "openapi: schema cache read failed"))
	assert.True(t, logSpy.HasLog(slog.LevelWarn, "openapi: schema cache write failed"))
	assert.Equal(t, int32(1), table.reads.Load(), "routes are read once per table version")
}

func Test_Annotator_Document_UnenforcedPreconditionAddsNoResponse(t *testing.T) {
	// arrange
	annotator, err := openapi.NewAnnotator(categoryTable(http.StatusConflict, contracts.NotEnforced()),
		openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	raw, err := annotator.Document(context.Background())

	// assert
	require.NoError(t, err)
	op := operation(t, decode(t, raw), "/books_in_category/{category}", "get")

	entries, ok := op[openapi.ExtensionContracts].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, float64(http.StatusConflict), entry["status_code"])
	assert.Equal(t, false, entry["enforced"])

	assert.NotContains(t, op["responses"], "409")
	assert.NotContains(t, op["responses"], "500")
}

func Test_Annotator_Document_OpaqueEndpointFailsLoudly(t *testing.T) {
	// arrange
	table := &countingTable{}
	table.add(openapi.Route{
		Method: http.MethodGet, Path: "/books_in_category/{category}",
		Endpoint: opaque{inner: booksInCategory()}, IncludeInSchema: true,
	})
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	_, err = annotator.Document(context.Background())

	// assert
	assert.ErrorIs(t, err, contracts.ErrOpaqueEndpoint)
}

func Test_Annotator_Document_DuplicateOperationIDFails(t *testing.T) {
	// arrange
	table := &countingTable{}
	for _, path := range []string{"/a", "/b"} {
		table.add(openapi.Route{
			Method: http.MethodGet, Path: path, OperationID: "same",
			Endpoint: contracts.Handle(contracts.NewSignature(), noop), IncludeInSchema: true,
		})
	}
	annotator, err := openapi.NewAnnotator(table, openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	_, err = annotator.Document(context.Background())

	// assert
	assert.ErrorIs(t, err, openapi.ErrDuplicateOperationID)
}

func Test_Annotator_Document_WithExtensionValidation(t *testing.T) {
	// arrange
	annotator, err := openapi.NewAnnotator(newTable(), openapi.Info{Title: "Books", Version: "1.0"},
		openapi.WithExtensionValidation())
	require.NoError(t, err)

	// act
	_, err = annotator.Document(context.Background())

	// assert
	assert.NoError(t, err)
}

func Test_Annotator_YAML_RendersSameDocument(t *testing.T) {
	// arrange
	annotator, err := openapi.NewAnnotator(newTable(), openapi.Info{Title: "Books", Version: "1.0"})
	require.NoError(t, err)

	// act
	raw, err := annotator.YAML(context.Background())

	// assert
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	op := operation(t, doc, "/books_in_category/{category}", "get")
	entries, ok := op[openapi.ExtensionContracts].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 2)
}

func Test_Fingerprint_FollowsDocumentedContent(t *testing.T) {
	// arrange
	routes := newTable().Routes()
	withoutExcluded := routes[:2]
	relabeled := append([]openapi.Route(nil), routes...)
	relabeled[0].Summary = "Books of a category"

	// act
	base, baseErr := openapi.Fingerprint(routes)
	again, againErr := openapi.Fingerprint(newTable().Routes())
	changed, changedErr := openapi.Fingerprint(relabeled)
	trimmed, trimmedErr := openapi.Fingerprint(withoutExcluded)

	// assert
	require.NoError(t, baseErr)
	require.NoError(t, againErr)
	require.NoError(t, changedErr)
	require.NoError(t, trimmedErr)
	assert.Equal(t, base, again)
	assert.NotEqual(t, base, changed)
	assert.Equal(t, base, trimmed, "excluded routes are not part of the document")
}

func Test_NewAnnotator_RejectsInvalidConfiguration(t *testing.T) {
	// act
	_, nilTableErr := openapi.NewAnnotator(nil, openapi.Info{})
	_, nilCacheErr := openapi.NewAnnotator(newTable(), openapi.Info{}, openapi.WithCache(nil))
	_, nilLoggerErr := openapi.NewAnnotator(newTable(), openapi.Info{}, openapi.WithLogger(nil))

	// assert
	assert.Error(t, nilTableErr)
	assert.Error(t, nilCacheErr)
	assert.Error(t, nilLoggerErr)
}
