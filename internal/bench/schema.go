package bench

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/user/streambench/pkg/streamapi"
)

// structuredSchema pins the shape of the structured benchmark payload.
const structuredSchema = `{
	"type": "object",
	"properties": {
		"int": {"type": "integer"},
		"boolean": {"type": "boolean"},
		"array": {
			"type": "array",
			"items": {"type": "integer"},
			"minItems": 3,
			"maxItems": 3
		},
		"string": {"type": "string"}
	},
	"required": ["int", "boolean", "array", "string"],
	"additionalProperties": false
}`

// ValidateStructured checks a structured record against the benchmark
// payload schema. Raw records are always valid.
func ValidateStructured(rec streamapi.Record) error {
	if rec.IsRaw() {
		return nil
	}
	doc, err := json.Marshal(rec.HRecord)
	if err != nil {
		return fmt.Errorf("encode hrecord: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(structuredSchema)
	docLoader := gojsonschema.NewBytesLoader(doc)
	res, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate hrecord: %w", err)
	}
	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, item := range res.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", item.Field(), item.Description()))
	}
	return fmt.Errorf("hrecord schema violation: %s", strings.Join(msgs, "; "))
}
