package openapi

import (
	"errors"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version is the OpenAPI Specification version of generated documents.
const Version = "3.0.3"

// ErrUnsupportedMethod is returned when a route uses a method a path item has no slot for.
var ErrUnsupportedMethod = errors.New("unsupported http method")

// Document is the root of an OpenAPI document.
//
// The model is deliberately small: it covers what the generator emits. Every object carries
// Extensions, which are marshalled as siblings of its other properties.
type Document struct {
	OpenAPI string               `yaml:"openapi"`
	Info    Info                 `yaml:"info"`
	Paths   map[string]*PathItem `yaml:"paths"`

	// Extensions (user-defined properties), if any.
	Extensions map[string]any `yaml:",inline"`
}

// Info is the metadata about the API.
type Info struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version"`

	Extensions map[string]any `yaml:",inline"`
}

// PathItem holds the operations available on a single path.
type PathItem struct {
	Get     *Operation `yaml:"get,omitempty"`
	Put     *Operation `yaml:"put,omitempty"`
	Post    *Operation `yaml:"post,omitempty"`
	Delete  *Operation `yaml:"delete,omitempty"`
	Options *Operation `yaml:"options,omitempty"`
	Head    *Operation `yaml:"head,omitempty"`
	Patch   *Operation `yaml:"patch,omitempty"`
	Trace   *Operation `yaml:"trace,omitempty"`

	Extensions map[string]any `yaml:",inline"`
}

// Operation describes a single API operation on a path.
type Operation struct {
	OperationID string               `yaml:"operationId,omitempty"`
	Summary     string               `yaml:"summary,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Parameters  []*Parameter         `yaml:"parameters,omitempty"`
	RequestBody *RequestBody         `yaml:"requestBody,omitempty"`
	Responses   map[string]*Response `yaml:"responses"`

	Extensions map[string]any `yaml:",inline"`
}

// Parameter describes a single path, query or header parameter.
type Parameter struct {
	Name        string  `yaml:"name"`
	In          string  `yaml:"in"`
	Description string  `yaml:"description,omitempty"`
	Required    bool    `yaml:"required,omitempty"`
	Schema      *Schema `yaml:"schema,omitempty"`
}

// RequestBody describes the body of a request.
type RequestBody struct {
	Description string                `yaml:"description,omitempty"`
	Required    bool                  `yaml:"required,omitempty"`
	Content     map[string]*MediaType `yaml:"content"`
}

// Response describes a single response of an operation.
type Response struct {
	Description string                `yaml:"description"`
	Content     map[string]*MediaType `yaml:"content,omitempty"`
}

// MediaType pairs a content type with its schema.
type MediaType struct {
	Schema *Schema `yaml:"schema,omitempty"`
}

// Operation returns the operation registered for method, or nil.
func (p *PathItem) Operation(method string) *Operation {
	slot := p.slot(method)
	if slot == nil {
		return nil
	}

	return *slot
}

// Operations returns the operations of p keyed by upper-case method.
func (p *PathItem) Operations() map[string]*Operation {
	operations := make(map[string]*Operation)
	for _, method := range methods {
		if op := p.Operation(method); op != nil {
			operations[method] = op
		}
	}

	return operations
}

func (p *PathItem) set(method string, op *Operation) error {
	slot := p.slot(method)
	if slot == nil {
		return errors.Join(ErrUnsupportedMethod, errors.New(method))
	}

	*slot = op

	return nil
}

var methods = []string{
	http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete,
	http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodTrace,
}

func (p *PathItem) slot(method string) **Operation {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return &p.Get
	case http.MethodPut:
		return &p.Put
	case http.MethodPost:
		return &p.Post
	case http.MethodDelete:
		return &p.Delete
	case http.MethodOptions:
		return &p.Options
	case http.MethodHead:
		return &p.Head
	case http.MethodPatch:
		return &p.Patch
	case http.MethodTrace:
		return &p.Trace
	default:
		return nil
	}
}

// generic converts d into plain maps and slices, honoring the yaml tags of the model
// (inline extensions included), so it can be encoded as JSON.
func (d *Document) generic() (any, error) {
	raw, err := yaml.Marshal(d)
	if err != nil {
		return nil, err
	}

	var out any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	return out, nil
}
