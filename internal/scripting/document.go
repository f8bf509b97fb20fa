package scripting

import (
	"fmt"
	"time"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/types"
)

// Document builds the script input from live data models:
// {"models": {<extension>: {<key>: data}}}. Values are reduced to JSON
// types so every engine sees the same document.
func Document(models []datamodel.DataModel) map[string]any {
	byExt := make(map[string]any)
	for _, m := range models {
		id := m.ID()
		ext, _ := byExt[id.ExtensionID].(map[string]any)
		if ext == nil {
			ext = make(map[string]any)
			byExt[id.ExtensionID] = ext
		}
		ext[id.Key] = plain(types.ObjectValue(m.Schema(), m.Data()).Interface())
	}
	return map[string]any{"models": byExt}
}

func plain(v any) any {
	switch t := v.(type) {
	case nil, bool, int64, float64, string:
		return t
	case int:
		return int64(t)
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		for k, item := range t {
			t[k] = plain(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = plain(item)
		}
		return t
	default:
		return fmt.Sprint(t)
	}
}
