// internal/common/validation/criteria.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// criteriaSchema constrains the search-criteria document stored on a user
// profile. Extra properties are allowed so the profile UI can evolve
// without an engine release.
var criteriaSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"keywords": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "string"},
			"minItems": 1,
		},
		"locations": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"remoteOnly": map[string]interface{}{
			"type": "boolean",
		},
		"minSalary": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
		},
		"seniority": map[string]interface{}{
			"type": "string",
			"enum": []string{"junior", "mid", "senior", "lead", "any"},
		},
	},
	"required": []string{"keywords"},
}

// ValidateCriteria checks a decoded criteria document against the schema
// and returns a readable error listing every violation.
func ValidateCriteria(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(criteriaSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("criteria schema validation: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid criteria: %s", strings.Join(msgs, "; "))
	}

	return nil
}
