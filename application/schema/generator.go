// Package schema generates JSON schemas for host function requests.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct.
// Field names follow the `json` tags; fields without `omitempty` are required.
func GenerateSchema(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot generate schema for nil")
	}
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand the top-level struct inline
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}
