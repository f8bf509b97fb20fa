// internal/diagram/builder.go
package diagram

import (
	"fmt"
	"strings"

	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/display"
	"github.com/solatis/lumen/internal/profile"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Model builders.
 *
 * Diagrams are built from the persistent forms so a stored profile renders
 * without live data models. Node ids are derived from the element id and the
 * child index path ("<element>/c/0/1"), which keeps them stable across
 * renders of the same document.
 */

const maxLabel = 48

// FromProfile lays out the elements of doc with their condition trees.
// met, when non-nil, colours elements by their current state.
func FromProfile(doc *profile.Document, met map[types.ElementID]bool) *Model {
	m := &Model{Title: doc.Name}
	for _, el := range doc.Elements {
		n := m.add(&Node{ID: string(el.ID), Label: elementLabel(el), Kind: NodeKindElement})
		if met != nil {
			v := met[el.ID]
			n.Met = &v
		}
	}
	for _, el := range doc.Elements {
		if el.ParentID != "" {
			m.link(string(el.ParentID), string(el.ID), "")
		}
		addCondition(m, string(el.ID), el.Condition)
	}
	return m
}

// FromTree lays out a single condition tree.
func FromTree(title string, tree conditions.NodeEntity) *Model {
	m := &Model{Title: title}
	root := m.add(&Node{ID: "root", Label: title, Kind: NodeKindRoot})
	addNode(m, root.ID, "root/c", tree, 0)
	return m
}

func elementLabel(el profile.ElementEntity) string {
	name := el.Name
	if name == "" {
		name = string(el.ID)
	}
	kind := el.Condition.Kind
	if kind == "" {
		kind = display.KindAlwaysOn
	}
	return fmt.Sprintf("%s\n[%s]", name, kind)
}

func addCondition(m *Model, elementID string, c display.ConditionEntity) {
	prefix := elementID + "/c"
	switch c.Kind {
	case display.KindStatic:
		switch {
		case c.Condition != nil:
			addNode(m, elementID, prefix, *c.Condition, 0)
		case c.Script != nil:
			lang := c.Script.Language
			if lang == "" {
				lang = "expr"
			}
			m.add(&Node{ID: prefix + "/script", Label: lang + ": " + truncate(c.Script.Source), Kind: NodeKindScript})
			m.link(elementID, prefix+"/script", "")
		}
	case display.KindEvents:
		for i, ev := range c.Events {
			addNode(m, elementID, fmt.Sprintf("%s/%d", prefix, i), ev, 0)
		}
	}
}

func addNode(m *Model, parent, id string, e conditions.NodeEntity, depth int) {
	if depth > types.MaxTreeDepth {
		return
	}
	n := m.add(&Node{ID: id, Label: nodeLabel(e)})
	switch e.Kind {
	case conditions.KindGroup:
		n.Kind = NodeKindGroup
	case conditions.KindList:
		n.Kind = NodeKindList
	case conditions.KindEvent:
		n.Kind = NodeKindEvent
	default:
		n.Kind = NodeKindPredicate
	}
	m.link(parent, id, "")
	for i, c := range e.Children {
		addNode(m, id, fmt.Sprintf("%s/%d", id, i), c, depth+1)
	}
}

func nodeLabel(e conditions.NodeEntity) string {
	switch e.Kind {
	case conditions.KindGroup:
		if e.BooleanOperator == "" {
			return "AND"
		}
		return strings.ToUpper(e.BooleanOperator)
	case conditions.KindList:
		label := "list " + e.ListOperator
		if e.Count != nil {
			label = fmt.Sprintf("count %s %d", e.Count.Mode, e.Count.N)
		}
		return label + " of " + pathLabel(e.Path)
	case conditions.KindEvent:
		return "on " + pathLabel(e.Path)
	default:
		op := "?"
		if e.Operator != nil {
			op = e.Operator.Type
		}
		right := ""
		switch {
		case e.RightPath != nil:
			right = " " + pathLabel(e.RightPath)
		case e.RightValue != nil:
			right = " " + truncate(string(e.RightValue.Value))
		}
		return pathLabel(e.LeftPath) + " " + op + right
	}
}

func pathLabel(p *conditions.PathEntity) string {
	if p == nil {
		return "?"
	}
	if p.DataModel == nil {
		return "." + p.Path
	}
	return p.DataModel.String() + ":" + p.Path
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLabel {
		return s
	}
	return s[:maxLabel-3] + "..."
}
