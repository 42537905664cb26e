package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// TypeMapping is an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean, object, array
	Format string // OpenAPI format: int64, double, date-time, etc.
}

var timeType = reflect.TypeOf(time.Time{})

// goTypeToOpenAPI maps a Go type to its OpenAPI representation.
func goTypeToOpenAPI(t reflect.Type) TypeMapping {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return TypeMapping{"string", "date-time"}
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeMapping{"boolean", ""}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeMapping{"integer", "int32"}
	case reflect.Int64, reflect.Uint, reflect.Uint64:
		return TypeMapping{"integer", "int64"}
	case reflect.Float32:
		return TypeMapping{"number", "float"}
	case reflect.Float64:
		return TypeMapping{"number", "double"}
	case reflect.Slice, reflect.Array:
		return TypeMapping{"array", ""}
	case reflect.Struct, reflect.Map:
		return TypeMapping{"object", ""}
	default:
		return TypeMapping{"string", ""}
	}
}

// schemaFor builds an object schema from the exported, JSON-visible fields
// of v. Pointer fields are nullable. Fields named in required are marked
// required.
func schemaFor(v interface{}, required ...string) *openapi3.SchemaRef {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: openapi3.Schemas{},
		Required:   required,
	}
	addFields(s, t)
	return &openapi3.SchemaRef{Value: s}
}

func addFields(s *openapi3.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			ft := f.Type
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				addFields(s, ft)
			}
			continue
		}
		if name == "" {
			name = f.Name
		}
		s.Properties[name] = &openapi3.SchemaRef{Value: fieldSchema(f.Type)}
	}
}

func fieldSchema(t reflect.Type) *openapi3.Schema {
	m := goTypeToOpenAPI(t)
	s := &openapi3.Schema{Type: &openapi3.Types{m.Type}}
	if m.Format != "" {
		s.Format = m.Format
	}
	if t.Kind() == reflect.Ptr {
		s.Nullable = true
	}
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: fieldSchema(t.Elem())}
	}
	return s
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

// idSchema accepts a number or a numeric string.
func idSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		OneOf: openapi3.SchemaRefs{
			{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
			{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Pattern: `^[0-9]+$`}},
		},
	}}
}
