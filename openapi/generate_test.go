package openapi

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SchemaPath_And_OperationID(t *testing.T) {
	testCases := []struct {
		method      string
		pattern     string
		path        string
		operationID string
	}{
		{method: "GET", pattern: "/", path: "/", operationID: "get"},
		{method: "GET", pattern: "/book_count", path: "/book_count", operationID: "get_book_count"},
		{method: "GET", pattern: "/books/{category}", path: "/books/{category}", operationID: "get_books_category"},
		{method: "DELETE", pattern: "/books/{id:[0-9]+}", path: "/books/{id}", operationID: "delete_books_id"},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern, func(t *testing.T) {
			assert.Equal(t, tc.path, SchemaPath(tc.pattern))
			assert.Equal(t, tc.operationID, OperationID(tc.method, tc.pattern))
		})
	}
}

func Test_SchemaFor_Struct(t *testing.T) {
	// arrange
	type node struct {
		Name     string    `json:"name"`
		Tags     []string  `json:"tags,omitempty"`
		Parent   *node     `json:"parent"`
		Created  time.Time `json:"created"`
		Score    float64   `json:"score"`
		internal int
		Skipped  string `json:"-"`
	}

	// act
	s := SchemaFor(reflect.TypeFor[node]())

	// assert
	assert.Equal(t, "object", s.Type)
	assert.ElementsMatch(t, []string{"name", "created", "score"}, s.Required)
	require.Contains(t, s.Properties, "tags")
	assert.Equal(t, "array", s.Properties["tags"].Type)
	assert.Equal(t, "date-time", s.Properties["created"].Format)
	assert.True(t, s.Properties["parent"].Nullable)
	assert.Nil(t, s.Properties["parent"].Properties, "recursion must be cut")
	assert.NotContains(t, s.Properties, "Skipped")
	assert.NotContains(t, s.Properties, "internal")
}

func Test_ExtensionValidator_RejectsMalformedEntries(t *testing.T) {
	// arrange
	v, err := newExtensionValidator()
	require.NoError(t, err)

	docWith := func(entry map[string]any) any {
		return map[string]any{
			"paths": map[string]any{
				"/books": map[string]any{
					"get": map[string]any{ExtensionContracts: []any{entry}},
				},
			},
		}
	}

	valid := map[string]any{
		"kind": "precondition", "description": nil, "status_code": float64(404), "enforced": true, "text": "x",
	}
	statusOnPostcondition := map[string]any{
		"kind": "postcondition", "description": nil, "status_code": float64(500), "enforced": true, "text": "x",
	}
	missingText := map[string]any{
		"kind": "precondition", "description": nil, "status_code": nil, "enforced": true,
	}

	// act + assert
	assert.NoError(t, v.validate(docWith(valid)))
	assert.ErrorIs(t, v.validate(docWith(statusOnPostcondition)), ErrInvalidExtension)
	assert.ErrorIs(t, v.validate(docWith(missingText)), ErrInvalidExtension)
}
