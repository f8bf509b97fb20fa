package profile

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/solatis/lumen/internal/types"
)

const dashboardJSON = `{
  "name": "dashboard",
  "elements": [
    {
      "id": "0190c1a8-0000-7000-8000-000000000002",
      "name": "low fuel warning",
      "parent_id": "0190c1a8-0000-7000-8000-000000000001",
      "timeline": {"start_ms": 250, "main_ms": 1000, "end_ms": 250, "stop_mode": "skip-to-end"},
      "condition": {
        "kind": "static",
        "play_mode": "repeat",
        "condition": {
          "kind": "group",
          "boolean_operator": "and",
          "children": [
            {
              "kind": "predicate",
              "predicate_type": "static",
              "operator": {"extension_id": "builtin", "type": "less-than"},
              "left_path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "fuel"},
              "right_value": {"kind": "float", "value": 5.5}
            }
          ]
        }
      }
    },
    {
      "id": "0190c1a8-0000-7000-8000-000000000001",
      "name": "hud",
      "timeline": {"start_ms": 0, "main_ms": 1000, "end_ms": 0},
      "condition": {"kind": "always-on"}
    },
    {
      "id": "0190c1a8-0000-7000-8000-000000000003",
      "name": "lap flash",
      "parent_id": "0190c1a8-0000-7000-8000-000000000001",
      "timeline": {"start_ms": 100, "main_ms": 300, "end_ms": 100},
      "condition": {
        "kind": "events",
        "overlap_mode": "copy",
        "trigger_mode": "play",
        "events": [
          {"kind": "event", "path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "lap_completed"}}
        ]
      }
    }
  ]
}`

const dashboardYAML = `
name: dashboard
elements:
  - id: 0190c1a8-0000-7000-8000-000000000002
    name: low fuel warning
    parent_id: 0190c1a8-0000-7000-8000-000000000001
    timeline: {start_ms: 250, main_ms: 1000, end_ms: 250, stop_mode: skip-to-end}
    condition:
      kind: static
      play_mode: repeat
      condition:
        kind: group
        boolean_operator: and
        children:
          - kind: predicate
            predicate_type: static
            operator: {extension_id: builtin, type: less-than}
            left_path:
              data_model: {extension_id: racing, key: car}
              path: fuel
            right_value: {kind: float, value: 5.5}
  - id: 0190c1a8-0000-7000-8000-000000000001
    name: hud
    timeline: {start_ms: 0, main_ms: 1000, end_ms: 0}
    condition: {kind: always-on}
  - id: 0190c1a8-0000-7000-8000-000000000003
    name: lap flash
    parent_id: 0190c1a8-0000-7000-8000-000000000001
    timeline: {start_ms: 100, main_ms: 300, end_ms: 100}
    condition:
      kind: events
      overlap_mode: copy
      trigger_mode: play
      events:
        - kind: event
          path:
            data_model: {extension_id: racing, key: car}
            path: lap_completed
`

func TestDecode(t *testing.T) {
	fromJSON, err := Decode([]byte(dashboardJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Decode(json) error = %v", err)
	}
	fromYAML, err := Decode([]byte(dashboardYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Decode(yaml) error = %v", err)
	}
	if !reflect.DeepEqual(fromJSON, fromYAML) {
		t.Errorf("yaml document differs from json:\n json: %+v\n yaml: %+v", fromJSON, fromYAML)
	}

	warn, ok := fromJSON.Element("0190c1a8-0000-7000-8000-000000000002")
	if !ok {
		t.Fatal("Element() missing low fuel warning")
	}
	if warn.Timeline.StopMode != "skip-to-end" || warn.Condition.Condition == nil {
		t.Errorf("low fuel warning = %+v", warn)
	}
	if got := warn.Condition.Condition.Children[0].RightValue.Kind; got != "float" {
		t.Errorf("right value kind = %q, want float", got)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	doc, err := Decode([]byte(dashboardJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Encode(doc, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			back, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode(Encode()) error = %v\n%s", err, data)
			}
			if back.Version != CurrentVersion {
				t.Errorf("Version = %d, want %d", back.Version, CurrentVersion)
			}
			back.Version = doc.Version
			if !reflect.DeepEqual(doc, back) {
				t.Errorf("round trip differs:\n got: %+v\nwant: %+v", back, doc)
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  Format
		wantMsg string
	}{
		{"not json", `{"name":`, FormatJSON, "parse"},
		{"missing name", `{"elements": []}`, FormatJSON, "name"},
		{"unknown field", `{"name": "x", "elements": [], "theme": "dark"}`, FormatJSON, "theme"},
		{"unknown condition kind", `{"name": "x", "elements": [{"id": "a", "condition": {"kind": "sometimes"}}]}`, FormatJSON, "condition"},
		{"script and tree", `{"name": "x", "elements": [{"id": "a", "condition": {"kind": "static", "script": {"source": "true"}, "condition": {"kind": "group"}}}]}`, FormatJSON, "condition"},
		{"bad node inside condition", `{"name": "x", "elements": [{"id": "a", "condition": {"kind": "static", "condition": {"kind": "predicate", "children": []}}}]}`, FormatJSON, "/elements/0/condition/condition"},
		{"negative segment", `{"name": "x", "elements": [{"id": "a", "timeline": {"main_ms": -1}}]}`, FormatJSON, "main_ms"},
		{"bad stop mode", `{"name": "x", "elements": [{"id": "a", "timeline": {"stop_mode": "rewind"}}]}`, FormatJSON, "stop_mode"},
		{"yaml non-string key", "name: x\nelements: []\n1: one\n", FormatYAML, "not a string"},
		{"blank name", `{"name": "  ", "elements": []}`, FormatJSON, "empty name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			if !errors.Is(err, types.ErrInvalidProfile) {
				t.Fatalf("Decode() error = %v, want ErrInvalidProfile", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Decode() error = %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDocument_Ordered(t *testing.T) {
	doc, err := Decode([]byte(dashboardJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	ordered, err := doc.Ordered()
	if err != nil {
		t.Fatalf("Ordered() error = %v", err)
	}
	var names []string
	for _, e := range ordered {
		names = append(names, e.Name)
	}
	want := []string{"hud", "low fuel warning", "lap flash"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Ordered() = %v, want %v", names, want)
	}
}

func TestDocument_CheckHierarchy(t *testing.T) {
	tests := []struct {
		name     string
		elements []ElementEntity
		wantErr  error
	}{
		{"flat", []ElementEntity{{ID: "a"}, {ID: "b"}}, nil},
		{"nested", []ElementEntity{{ID: "c", ParentID: "b"}, {ID: "b", ParentID: "a"}, {ID: "a"}}, nil},
		{"missing id", []ElementEntity{{Name: "anonymous"}}, types.ErrInvalidProfile},
		{"duplicate id", []ElementEntity{{ID: "a"}, {ID: "a"}}, types.ErrInvalidProfile},
		{"unknown parent", []ElementEntity{{ID: "a", ParentID: "ghost"}}, types.ErrElementNotFound},
		{"own parent", []ElementEntity{{ID: "a", ParentID: "a"}}, types.ErrInvalidProfile},
		{"cycle", []ElementEntity{{ID: "r"}, {ID: "a", ParentID: "b"}, {ID: "b", ParentID: "a"}}, types.ErrInvalidProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{Name: "p", Elements: tt.elements}
			err := doc.Check()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Check() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"dash.json":         FormatJSON,
		"dash.yaml":         FormatYAML,
		"profiles/dash.YML": FormatYAML,
		"dash":              FormatJSON,
		"dash.toml":         FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
}
