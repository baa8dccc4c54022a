// internal/server/schema.go
package server

import (
	"strings"

	"github.com/acmecorp/hrdesk/internal/fault"

	"github.com/xeipuuv/gojsonschema"
)

// chatRequestSchema validates POST /chats bodies before decoding. The
// message length cap mirrors the limit enforced by the query pipeline.
const chatRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "session_id": {
      "type": "string",
      "pattern": "^[A-Za-z0-9_-]{1,64}$"
    },
    "user_message": {
      "type": "string",
      "minLength": 1,
      "maxLength": 2000
    }
  },
  "required": ["user_message"],
  "additionalProperties": false
}`

// attritionRequestSchema validates POST /attrition/summary bodies.
// Filter values are checked against the loaded dataset afterwards, so the
// schema only pins down shapes.
const attritionRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "dimension": {
      "type": "string",
      "minLength": 1
    },
    "top_n": {
      "type": "integer",
      "minimum": 0,
      "maximum": 1000
    },
    "filters": {
      "type": "object",
      "properties": {
        "departments": {"type": "array", "items": {"type": "string"}},
        "job_roles": {"type": "array", "items": {"type": "string"}},
        "genders": {"type": "array", "items": {"type": "string"}},
        "overtime": {"type": "boolean"},
        "age_groups": {"type": "array", "items": {"type": "string"}},
        "tenure_bands": {"type": "array", "items": {"type": "string"}},
        "income_bands": {"type": "array", "items": {"type": "string"}},
        "satisfaction": {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": false
    }
  },
  "required": ["dimension"],
  "additionalProperties": false
}`

// validateJSON checks body against a compiled schema and folds every
// violation into a single validation error.
func validateJSON(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fault.Errorf(fault.KindValidation, "invalid JSON body: %w", err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fault.Errorf(fault.KindValidation, "invalid request: %s", strings.Join(details, "; "))
}
