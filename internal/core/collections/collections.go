// Package collections registers the portfolio collections with the core
// registry. Import it for its side effects.
package collections

import (
	"embed"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
)

//go:embed fallback/*.yaml
var fallbackFS embed.FS

// fallback loads the embedded fallback records for a collection.
func fallback(key string) []grid.Record {
	data, err := fallbackFS.ReadFile("fallback/" + key + ".yaml")
	if err != nil {
		panic(fmt.Sprintf("missing fallback records for %s: %v", key, err))
	}
	return core.MustParseFallback(data)
}

// nested returns an accessor reading key inside the object field.
func nested(field, key string) func(grid.Record) any {
	return func(r grid.Record) any {
		obj, ok := r.Fields[field].(map[string]any)
		if !ok {
			return nil
		}
		return obj[key]
	}
}

func renderPercent(v any) string {
	if f, ok := grid.ParseNumber(v); ok {
		return fmt.Sprintf("%.0f%%", f)
	}
	return ""
}

func renderMoney(v any) string {
	if f, ok := grid.ParseNumber(v); ok {
		return "$" + humanize.Commaf(f)
	}
	return ""
}

func renderYesNo(v any) string {
	b, ok := grid.ParseBool(v)
	switch {
	case !ok:
		return ""
	case b:
		return "Yes"
	default:
		return "No"
	}
}
