// internal/conditions/validate.go
package conditions

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/solatis/lumen/internal/types"
)

// SchemaURL identifies the condition node JSON Schema. Other schemas may
// reference it with "$ref" once AddSchemaResource ran on their compiler.
const SchemaURL = "https://lumen.solatis.dev/schemas/condition-node.json"

//go:embed schema/node.json
var nodeSchemaJSON []byte

var (
	nodeSchemaOnce sync.Once
	nodeSchema     *jsonschema.Schema
	nodeSchemaErr  error
)

// AddSchemaResource registers the node schema with c.
func AddSchemaResource(c *jsonschema.Compiler) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(nodeSchemaJSON))
	if err != nil {
		return fmt.Errorf("unmarshal node schema: %w", err)
	}
	if err := c.AddResource(SchemaURL, doc); err != nil {
		return fmt.Errorf("add node schema resource: %w", err)
	}
	return nil
}

func compiledNodeSchema() (*jsonschema.Schema, error) {
	nodeSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if nodeSchemaErr = AddSchemaResource(c); nodeSchemaErr != nil {
			return
		}
		nodeSchema, nodeSchemaErr = c.Compile(SchemaURL)
	})
	return nodeSchema, nodeSchemaErr
}

// ValidateDocument checks raw JSON against the node schema. Violations are
// reported with their instance locations and wrap ErrInvalidEntity.
func ValidateDocument(data []byte) error {
	schema, err := compiledNodeSchema()
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse condition document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return SchemaError(err)
	}
	return nil
}

// SchemaError flattens a jsonschema validation error into one error
// wrapping ErrInvalidEntity.
func SchemaError(err error) error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("%w: %v", types.ErrInvalidEntity, err)
	}
	violations := collectViolations(verr)
	return fmt.Errorf("%w: %s", types.ErrInvalidEntity, strings.Join(violations, "; "))
}

// collectViolations walks the error tree and returns leaf messages prefixed
// with their instance location.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
