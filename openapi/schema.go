package openapi

import (
	"reflect"
	"strings"
	"time"
)

// Schema is the subset of the OpenAPI schema object the generator derives from Go types.
type Schema struct {
	Type                 string             `yaml:"type,omitempty"`
	Format               string             `yaml:"format,omitempty"`
	Items                *Schema            `yaml:"items,omitempty"`
	Properties           map[string]*Schema `yaml:"properties,omitempty"`
	AdditionalProperties *Schema            `yaml:"additionalProperties,omitempty"`
	Required             []string           `yaml:"required,omitempty"`
	Nullable             bool               `yaml:"nullable,omitempty"`
}

var timeType = reflect.TypeFor[time.Time]()

// SchemaFor describes t. Struct fields follow their json tags. Recursive types are cut off
// at the first repetition with a bare object schema.
func SchemaFor(t reflect.Type) *Schema {
	return schemaFor(t, map[reflect.Type]bool{})
}

func schemaFor(t reflect.Type, seen map[reflect.Type]bool) *Schema {
	if t == nil {
		return &Schema{}
	}

	if t == timeType {
		return &Schema{Type: "string", Format: "date-time"}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return &Schema{Type: "integer", Format: "int32"}
	case reflect.Int64, reflect.Uint64:
		return &Schema{Type: "integer", Format: "int64"}
	case reflect.Float32:
		return &Schema{Type: "number", Format: "float"}
	case reflect.Float64:
		return &Schema{Type: "number", Format: "double"}
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Pointer:
		s := schemaFor(t.Elem(), seen)
		s.Nullable = true
		return s
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: "string", Format: "byte"}
		}
		return &Schema{Type: "array", Items: schemaFor(t.Elem(), seen)}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: schemaFor(t.Elem(), seen)}
	case reflect.Struct:
		return structSchema(t, seen)
	default:
		return &Schema{}
	}
}

func structSchema(t reflect.Type, seen map[reflect.Type]bool) *Schema {
	s := &Schema{Type: "object"}
	if seen[t] {
		return s
	}

	seen[t] = true
	defer delete(seen, t)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitempty, skip := jsonName(field)
		if skip {
			continue
		}

		if s.Properties == nil {
			s.Properties = make(map[string]*Schema)
		}

		s.Properties[name] = schemaFor(field.Type, seen)
		if !omitempty && field.Type.Kind() != reflect.Pointer {
			s.Required = append(s.Required, name)
		}
	}

	return s
}

func jsonName(field reflect.StructField) (name string, omitempty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}

	for _, option := range parts[1:] {
		if option == "omitempty" || option == "omitzero" {
			omitempty = true
		}
	}

	return name, omitempty, false
}
