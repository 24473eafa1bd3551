package openapi

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

// Content types used in generated documents.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeProblem = "application/problem+json"
)

// ErrDuplicateOperationID is returned when two routes share an operation id.
var ErrDuplicateOperationID = errors.New("duplicate operation id")

// ErrDuplicateRoute is returned when two routes share a method and a path.
var ErrDuplicateRoute = errors.New("duplicate route")

// Route is one registered endpoint as the schema generator sees it.
type Route struct {
	Method          string
	Path            string
	OperationID     string
	Summary         string
	Endpoint        contracts.Endpoint
	IncludeInSchema bool
}

// RouteTable is the source of routes for the generator.
// Version must change whenever the set of routes changes.
type RouteTable interface {
	Routes() []Route
	Version() uint64
}

// Generate builds the base document for every schema-included route of table.
// It does not look at contracts; see Annotator for that.
func Generate(table RouteTable, info Info) (*Document, error) {
	doc := &Document{
		OpenAPI: Version,
		Info:    info,
		Paths:   make(map[string]*PathItem),
	}

	operationIDs := make(map[string]string)

	for _, route := range table.Routes() {
		if !route.IncludeInSchema {
			continue
		}

		if route.Endpoint == nil {
			return nil, fmt.Errorf("route %s %s: %w", route.Method, route.Path, contracts.ErrNilEndpoint)
		}

		path := SchemaPath(route.Path)
		item, ok := doc.Paths[path]
		if !ok {
			item = &PathItem{}
			doc.Paths[path] = item
		}

		if item.Operation(route.Method) != nil {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateRoute, route.Method, path)
		}

		op := newOperation(route)
		if previous, taken := operationIDs[op.OperationID]; taken {
			return nil, fmt.Errorf("%w: %q used by %s and %s %s",
				ErrDuplicateOperationID, op.OperationID, previous, route.Method, path)
		}
		operationIDs[op.OperationID] = route.Method + " " + path

		if err := item.set(route.Method, op); err != nil {
			return nil, fmt.Errorf("route %s %s: %w", route.Method, path, err)
		}
	}

	return doc, nil
}

func newOperation(route Route) *Operation {
	sig := route.Endpoint.Signature()

	op := &Operation{
		OperationID: route.OperationID,
		Summary:     route.Summary,
		Responses:   map[string]*Response{},
	}
	if op.OperationID == "" {
		op.OperationID = OperationID(route.Method, route.Path)
	}

	for _, p := range sig.Params {
		if p.In == contracts.InBody {
			op.RequestBody = &RequestBody{
				Description: p.Description,
				Required:    p.Required,
				Content:     map[string]*MediaType{ContentTypeJSON: {Schema: SchemaFor(p.Type)}},
			}
			continue
		}

		op.Parameters = append(op.Parameters, &Parameter{
			Name:        p.Name,
			In:          string(p.In),
			Description: p.Description,
			Required:    p.Required || p.In == contracts.InPath,
			Schema:      SchemaFor(p.Type),
		})
	}

	success := &Response{Description: "Successful Response"}
	if sig.Result != nil {
		success.Content = map[string]*MediaType{ContentTypeJSON: {Schema: SchemaFor(sig.Result)}}
	}
	op.Responses[strconv.Itoa(http.StatusOK)] = success

	if len(sig.Params) > 0 {
		op.Responses[strconv.Itoa(http.StatusUnprocessableEntity)] = problemResponse("Validation Error")
	}

	return op
}

func problemResponse(description string) *Response {
	return &Response{
		Description: description,
		Content:     map[string]*MediaType{ContentTypeProblem: {Schema: problemSchema()}},
	}
}

func problemSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"type":     {Type: "string"},
			"title":    {Type: "string"},
			"status":   {Type: "integer", Format: "int32"},
			"detail":   {Type: "string"},
			"instance": {Type: "string"},
			"trace_id": {Type: "string"},
		},
	}
}

var (
	routeParamPattern = regexp.MustCompile(`\{([^{}:]+):[^{}]*\}`)
	nonWordPattern    = regexp.MustCompile(`\W+`)
)

// SchemaPath turns a chi route pattern into an OpenAPI path, dropping regular expressions
// from path parameters: "/books/{id:[0-9]+}" becomes "/books/{id}".
func SchemaPath(pattern string) string {
	return routeParamPattern.ReplaceAllString(pattern, "{$1}")
}

// OperationID derives an operation id from method and path: "GET /books/{category}"
// becomes "get_books_category".
func OperationID(method, path string) string {
	id := nonWordPattern.ReplaceAllString(SchemaPath(path), "_")
	id = strings.Trim(id, "_")

	if id == "" {
		return strings.ToLower(method)
	}

	return strings.ToLower(method) + "_" + id
}
