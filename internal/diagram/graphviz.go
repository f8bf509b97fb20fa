// internal/diagram/graphviz.go
package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// Format is an output format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatDOT Format = "dot"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPNG, FormatSVG, FormatDOT:
		return Format(s), nil
	default:
		return "", fmt.Errorf("diagram: unsupported format %q", s)
	}
}

func (f Format) graphviz() graphviz.Format {
	switch f {
	case FormatSVG:
		return graphviz.SVG
	case FormatDOT:
		return graphviz.XDOT
	default:
		return graphviz.PNG
	}
}

// Render lays out model with dot and renders it in format.
func Render(ctx context.Context, model *Model, format Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	nodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, n := range model.Nodes {
		gn, err := graph.CreateNodeByName(n.ID)
		if err != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", n.ID, err)
		}
		gn.SetLabel(n.Label)
		applyStyle(gn, n)
		nodes[n.ID] = gn
	}
	for _, e := range model.Edges {
		from, to := nodes[e.From], nodes[e.To]
		if from == nil || to == nil {
			continue
		}
		ge, err := graph.CreateEdgeByName("", from, to)
		if err == nil && e.Label != "" {
			ge.SetLabel(e.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, format.graphviz(), &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func applyStyle(gn *cgraph.Node, n *Node) {
	switch n.Kind {
	case NodeKindElement:
		gn.SetShape(cgraph.BoxShape)
	case NodeKindRoot:
		gn.SetShape(cgraph.DoubleCircleShape)
	case NodeKindGroup:
		gn.SetShape(cgraph.DiamondShape)
	case NodeKindList:
		gn.SetShape(cgraph.HexagonShape)
	case NodeKindEvent:
		gn.SetShape(cgraph.OctagonShape)
	case NodeKindScript:
		gn.SetShape(cgraph.NoteShape)
	default:
		gn.SetShape(cgraph.EllipseShape)
	}

	if n.Met == nil {
		return
	}
	gn.SetStyle(cgraph.FilledNodeStyle)
	if *n.Met {
		gn.SetFillColor("#2d6a2d")
		gn.SetFontColor("white")
	} else {
		gn.SetFillColor("#d3d3d3")
		gn.SetFontColor("black")
	}
}
