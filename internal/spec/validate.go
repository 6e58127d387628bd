package spec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidateRawSpec runs a structural OpenAPI 3.0 validation over a fetched
// document. It is an opt-in diagnostic: vendor specs routinely carry minor
// violations the merge pipeline tolerates, so callers log the result instead
// of failing on it. Swagger 2.0 inputs should be converted first.
func ValidateRawSpec(ctx context.Context, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode spec for validation: %w", err)
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	parsed, err := loader.LoadFromData(raw)
	if err != nil {
		return fmt.Errorf("parse spec: %w", err)
	}
	if err := parsed.Validate(ctx); err != nil {
		return fmt.Errorf("validate spec: %w", err)
	}
	return nil
}
