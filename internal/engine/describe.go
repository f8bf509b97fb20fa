// internal/engine/describe.go
package engine

import (
	"sort"

	"github.com/solatis/lumen/internal/types"
)

// PropertyInfo describes one data model property.
type PropertyInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ModelInfo describes a registered data model.
type ModelInfo struct {
	ID         types.DataModelID `json:"id"`
	Schema     string            `json:"schema,omitempty"`
	Properties []PropertyInfo    `json:"properties"`
}

// OperatorInfo describes a registered operator.
type OperatorInfo struct {
	Ref         types.OperatorRef `json:"ref"`
	Description string            `json:"description,omitempty"`
	LeftTypes   []string          `json:"left_types"`
	RightSide   bool              `json:"right_side"`
}

// Catalog lists what condition trees can reference right now.
type Catalog struct {
	DataModels []ModelInfo    `json:"data_models"`
	Operators  []OperatorInfo `json:"operators"`
	Languages  []string       `json:"script_languages"`
}

// Describe returns the current catalog, models sorted by id.
func (e *Engine) Describe() Catalog {
	var c Catalog
	for _, m := range e.env.DataModels.List() {
		info := ModelInfo{ID: m.ID(), Schema: m.Schema().Name(), Properties: []PropertyInfo{}}
		for _, p := range m.Schema().Properties() {
			info.Properties = append(info.Properties, PropertyInfo{
				Name:        p.Name,
				Type:        p.Type.String(),
				Description: p.Description,
			})
		}
		c.DataModels = append(c.DataModels, info)
	}
	sort.Slice(c.DataModels, func(i, j int) bool {
		return c.DataModels[i].ID.String() < c.DataModels[j].ID.String()
	})

	for _, op := range e.env.Operators.All() {
		info := OperatorInfo{Ref: op.Ref(), Description: op.Description, RightSide: op.SupportsRightSide}
		for _, t := range op.LeftTypes {
			info.LeftTypes = append(info.LeftTypes, t.String())
		}
		c.Operators = append(c.Operators, info)
	}
	c.Languages = e.env.Scripts.Languages()
	return c
}
