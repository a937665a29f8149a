package httpserver

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Text arguments are only type-checked here; their length and character
// rules belong to the ledger so that violations surface as coded rejections.
var (
	registerResearcherSchema = mustLoadSchema("schemas/register_researcher.json")
	submitGenomeSchema       = mustLoadSchema("schemas/submit_genome.json")
	addValidatorSchema       = mustLoadSchema("schemas/add_validator.json")
)

func mustLoadSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", name, err))
	}
	return schema
}

// validatePayload returns a single error listing every schema violation in payload.
func validatePayload(schema *gojsonschema.Schema, payload []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("invalid request body: %s", strings.Join(violations, "; "))
}
