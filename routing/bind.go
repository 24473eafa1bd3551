package routing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

// FieldError describes why one parameter could not be bound.
type FieldError struct {
	Name   string `json:"name"`
	In     string `json:"in"`
	Reason string `json:"reason"`
}

// BindingError is returned when a request does not match the endpoint's signature.
type BindingError struct {
	Fields []FieldError
}

func (e *BindingError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s: %s", f.In, f.Name, f.Reason))
	}

	return "request binding failed: " + strings.Join(parts, "; ")
}

var (
	errMissing     = errors.New("field required")
	errUnsupported = errors.New("unsupported parameter type")
)

// maxBodyBytes bounds request bodies decoded by the binder.
const maxBodyBytes = 1 << 20

// Bind reads the arguments declared by sig from r.
// Absent optional parameters are left out of the result. All problems are reported at once.
func Bind(r *http.Request, sig contracts.Signature) (contracts.Args, error) {
	args := make(contracts.Args, len(sig.Params))

	var fields []FieldError
	fail := func(p contracts.Param, err error) {
		fields = append(fields, FieldError{Name: p.Name, In: string(p.In), Reason: err.Error()})
	}

	query := r.URL.Query()

	for _, p := range sig.Params {
		var (
			value   any
			present bool
			err     error
		)

		switch p.In {
		case contracts.InPath:
			raw := chi.URLParam(r, p.Name)
			present = raw != ""
			if present {
				value, err = convert([]string{raw}, p.Type)
			}

		case contracts.InQuery:
			raw, ok := query[p.Name]
			present = ok && len(raw) > 0
			if present {
				value, err = convert(raw, p.Type)
			}

		case contracts.InHeader:
			raw := r.Header.Values(p.Name)
			present = len(raw) > 0
			if present {
				value, err = convert(raw, p.Type)
			}

		case contracts.InBody:
			value, present, err = decodeBody(r, p.Type)

		default:
			err = fmt.Errorf("%w: location %q", errUnsupported, p.In)
		}

		switch {
		case err != nil:
			fail(p, err)
		case present:
			args[p.Name] = value
		case p.Required:
			fail(p, errMissing)
		}
	}

	if len(fields) > 0 {
		return nil, &BindingError{Fields: fields}
	}

	return args, nil
}

func decodeBody(r *http.Request, t reflect.Type) (any, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, false, err
	}

	if len(raw) > maxBodyBytes {
		return nil, false, errors.New("body too large")
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, false, nil
	}

	target := reflect.New(t)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, target.Interface()); err != nil {
		return nil, false, fmt.Errorf("invalid JSON body: %w", err)
	}

	return target.Elem().Interface(), true, nil
}

// convert turns the raw string values of a parameter into a value of type t.
// Slices take every value, scalars take the first.
func convert(raw []string, t reflect.Type) (any, error) {
	if t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, 0, len(raw))
		for _, s := range raw {
			elem, err := scalar(s, t.Elem())
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, elem)
		}

		return out.Interface(), nil
	}

	v, err := scalar(raw[0], t)
	if err != nil {
		return nil, err
	}

	return v.Interface(), nil
}

func scalar(s string, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.String:
		v.SetString(s)

	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value is not a valid boolean: %q", s)
		}
		v.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value is not a valid integer: %q", s)
		}
		v.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value is not a valid unsigned integer: %q", s)
		}
		v.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value is not a valid number: %q", s)
		}
		v.SetFloat(f)

	default:
		return reflect.Value{}, fmt.Errorf("%w: %s", errUnsupported, t)
	}

	return v, nil
}
