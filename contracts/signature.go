package contracts

import (
	"reflect"
)

// Location tells the router where a parameter is read from.
type Location string

// Parameter locations.
const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InHeader Location = "header"
	InBody   Location = "body"
)

// Param describes one named argument of an endpoint.
type Param struct {
	Name        string
	In          Location
	Required    bool
	Type        reflect.Type
	Description string
}

// Optional returns a copy of p that is not required.
func (p Param) Optional() Param {
	p.Required = false
	return p
}

// Describe returns a copy of p with the given description.
func (p Param) Describe(description string) Param {
	p.Description = description
	return p
}

func (p Param) equal(other Param) bool {
	return p.Name == other.Name &&
		p.In == other.In &&
		p.Required == other.Required &&
		p.Type == other.Type
}

// PathParam declares a required string path parameter.
func PathParam(name string) Param {
	return Param{Name: name, In: InPath, Required: true, Type: reflect.TypeFor[string]()}
}

// QueryParam declares a required query parameter converted to T.
// T must be a string, bool, integer or float kind.
func QueryParam[T any](name string) Param {
	return Param{Name: name, In: InQuery, Required: true, Type: reflect.TypeFor[T]()}
}

// HeaderParam declares a required string header parameter.
func HeaderParam(name string) Param {
	return Param{Name: name, In: InHeader, Required: true, Type: reflect.TypeFor[string]()}
}

// BodyParam declares the JSON request body decoded into T.
func BodyParam[T any](name string) Param {
	return Param{Name: name, In: InBody, Required: true, Type: reflect.TypeFor[T]()}
}

// Signature is the introspectable parameter list of an endpoint.
// Every wrapper returns the signature of the endpoint it wraps, so the router can bind
// arguments and the schema generator can describe them regardless of decoration.
type Signature struct {
	Params []Param
	Result reflect.Type
}

// NewSignature builds a signature from params.
func NewSignature(params ...Param) Signature {
	return Signature{Params: params}
}

// Returning returns a copy of s whose result is of type t.
func (s Signature) Returning(t reflect.Type) Signature {
	s.Result = t
	return s
}

// Has reports whether s declares a parameter called name.
func (s Signature) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Lookup returns the parameter called name.
func (s Signature) Lookup(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}

	return Param{}, false
}

// Names returns the parameter names in declaration order.
func (s Signature) Names() []string {
	names := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		names = append(names, p.Name)
	}

	return names
}

// Equal reports whether s and other declare the same parameters and result.
func (s Signature) Equal(other Signature) bool {
	if len(s.Params) != len(other.Params) || s.Result != other.Result {
		return false
	}

	for i := range s.Params {
		if !s.Params[i].equal(other.Params[i]) {
			return false
		}
	}

	return true
}
