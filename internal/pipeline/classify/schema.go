// internal/pipeline/classify/schema.go
package classify

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"community-scout/internal/models"
)

// entityValidator checks each model-produced entity object against the
// required output shape before it is accepted into a batch's results.
type entityValidator struct {
	schema *gojsonschema.Schema
}

func newEntityValidator() (*entityValidator, error) {
	schemaMap := map[string]interface{}{
		"type":     "object",
		"required": []string{"name", "category"},
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
			},
			"category": map[string]interface{}{
				"type": "string",
				"enum": models.Categories,
			},
			"handle":      map[string]interface{}{"type": []string{"string", "null"}},
			"subcategory": map[string]interface{}{"type": []string{"string", "null"}},
			"followers":   map[string]interface{}{"type": []string{"string", "null"}},
			"logo":        map[string]interface{}{"type": []string{"string", "null"}},
			"reasoning":   map[string]interface{}{"type": []string{"string", "null"}},
			"source_url":  map[string]interface{}{"type": []string{"string", "null"}},
		},
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, err
	}
	return &entityValidator{schema: schema}, nil
}

func (v *entityValidator) Validate(document []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}
	return fmt.Errorf("entity failed schema validation: %s", strings.Join(messages, "; "))
}
