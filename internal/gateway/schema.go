package gateway

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/inbound.schema.json
var inboundSchemaSource string

var inboundSchema = jsonschema.MustCompileString("inbound.schema.json", inboundSchemaSource)

// ValidateInbound checks a raw frame against the inbound schema. Frames
// that fail validation are dropped by the read loop before dispatch.
func ValidateInbound(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if err := inboundSchema.Validate(v); err != nil {
		return fmt.Errorf("validate frame: %w", err)
	}
	return nil
}
