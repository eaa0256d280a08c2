package hub

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

//go:embed schema/payment-instruction.json
var paymentInstructionSchema string

//go:embed schema/quote-request.json
var quoteRequestSchema string

//go:embed schema/discovery-request.json
var discoveryRequestSchema string

//go:embed schema/setup-request.json
var setupRequestSchema string

//go:embed schema/completion-request.json
var completionRequestSchema string

var (
	quoteRequestValidator      = mustCompile(quoteRequestSchema)
	discoveryRequestValidator  = mustCompile(discoveryRequestSchema)
	setupRequestValidator      = mustCompile(setupRequestSchema)
	completionRequestValidator = mustCompile(completionRequestSchema)
)

func mustCompile(raw string) *gojsonschema.Schema {
	sl := gojsonschema.NewSchemaLoader()
	if err := sl.AddSchemas(gojsonschema.NewStringLoader(paymentInstructionSchema)); err != nil {
		panic(fmt.Sprintf("adding payment instruction schema: %v", err))
	}
	schema, err := sl.Compile(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compiling message schema: %v", err))
	}
	return schema
}

// validateMessage checks a raw request body against its message schema
// before the hub touches it.
func validateMessage(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return crossborder.WrapError(crossborder.ErrCodeValidation, "parsing message body", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return crossborder.Errorf(crossborder.ErrCodeValidation,
		"message failed schema validation: %s", strings.Join(details, "; "))
}
