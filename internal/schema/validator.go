// internal/schema/validator.go
// Package schema validates catalog seed documents before import. A malformed
// seed file is rejected as a whole; nothing is partially imported.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// catalogSchema is the JSON Schema every catalog seed document must satisfy.
// It mirrors the Movie invariants: unique non-empty ids, ratings in [0,10],
// at least one genre tag per movie.
const catalogSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "title", "year", "genre", "rating"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"title": {"type": "string", "minLength": 1},
			"year": {"type": "integer", "minimum": 1888},
			"poster": {"type": "string"},
			"backdrop": {"type": "string"},
			"genre": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"minItems": 1
			},
			"rating": {"type": "number", "minimum": 0, "maximum": 10},
			"description": {"type": "string"},
			"director": {"type": "string"},
			"cast": {"type": "array", "items": {"type": "string"}},
			"runtime": {"type": "integer", "minimum": 0},
			"releaseDate": {"type": "string"}
		},
		"additionalProperties": false
	}
}`

// Validator checks catalog seed documents against the embedded schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the embedded catalog schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateCatalog validates a raw catalog seed document. It returns an error
// listing every violation when the document does not conform.
func (v *Validator) ValidateCatalog(document []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate catalog document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("catalog document invalid: %s", strings.Join(problems, "; "))
}
