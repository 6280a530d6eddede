package fhir

import (
	"errors"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Validate checks a record against a schema and returns every violation as a
// human-readable message. An empty slice means the record is valid; the
// pipeline collects all errors per record rather than stopping at the first.
func Validate(record map[string]any, schema *openapi3.Schema) []string {
	err := schema.VisitJSON(record, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		messages := make([]string, 0, len(multi))
		for _, e := range multi {
			messages = append(messages, describe(e))
		}
		return messages
	}
	return []string{describe(err)}
}

// describe flattens a schema error into "field.path: reason" form.
func describe(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
			return strings.Join(pointer, ".") + ": " + schemaErr.Reason
		}
		return schemaErr.Reason
	}
	return err.Error()
}
