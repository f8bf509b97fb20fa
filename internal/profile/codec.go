// internal/profile/codec.go
package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Profile encoding.
 *
 * JSON is canonical. YAML documents are decoded into generic values and
 * re-encoded as JSON, so both formats share the JSON field names and one
 * schema. Decode validates in three steps:
 *   1. JSON Schema (structure, enums, limits; nodes via the condition schema)
 *   2. strict unmarshal into Document
 *   3. hierarchy check (unique ids, known parents, no cycles)
 * Semantic problems inside condition trees (unknown operators, missing
 * data models) are left to load time, which tolerates them.
 */

// SchemaURL identifies the profile JSON Schema.
const SchemaURL = "https://lumen.solatis.dev/schemas/profile.json"

//go:embed schema/profile.json
var profileSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if schemaErr = conditions.AddSchemaResource(c); schemaErr != nil {
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(profileSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal profile schema: %w", err)
			return
		}
		if err := c.AddResource(SchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add profile schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(SchemaURL)
	})
	return schema, schemaErr
}

// Validate checks raw JSON against the profile schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: parse: %v", types.ErrInvalidProfile, err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidProfile, conditions.SchemaError(err))
	}
	return nil
}

// Decode parses and validates a profile document.
func Decode(data []byte, format Format) (*Document, error) {
	if format == FormatYAML {
		var err error
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
		}
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode serializes doc in format, stamping the current version.
func Encode(doc *Document, format Format) ([]byte, error) {
	out := *doc
	out.Version = CurrentVersion
	if out.Elements == nil {
		out.Elements = []ElementEntity{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if format != FormatYAML {
		return append(data, '\n'), nil
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode profile yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode profile yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	plain, err := jsonCompatible(generic, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

// jsonCompatible rejects non-string map keys, which YAML allows.
func jsonCompatible(v any, depth int) (any, error) {
	if depth > 4*types.MaxTreeDepth {
		return nil, types.ErrTreeTooDeep
	}
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			c, err := jsonCompatible(item, depth+1)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("yaml key %v is not a string", k)
			}
			c, err := jsonCompatible(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[ks] = c
		}
		return out, nil
	case []any:
		for i, item := range t {
			c, err := jsonCompatible(item, depth+1)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
		return t, nil
	default:
		return v, nil
	}
}
