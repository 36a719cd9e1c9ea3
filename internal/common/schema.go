package common

import (
	"encoding/json"
	"fmt"

	jsonschema "github.com/google/jsonschema-go/jsonschema"
)

// ToJSON marshals v to a JSON string, returning "" on failure — used for
// best-effort log fields, never for values that must round-trip.
func ToJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// GenerateSchema generates a JSON schema for T, for use as a Tool's
// ParamsSchema, adapted from the teacher's utils.GenerateSchema[T].
func GenerateSchema[T any]() json.RawMessage {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema: %v", err))
	}
	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal schema: %v", err))
	}
	return b
}
