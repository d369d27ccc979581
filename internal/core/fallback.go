package core

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/folio/internal/grid"
)

// ParseFallback decodes a YAML list of records into fallback records. Each
// entry needs an "id"; every other key becomes a field.
//
//	- id: sample-folio
//	  title: Folio
//	  technologies: [go, postgres]
func ParseFallback(data []byte) ([]grid.Record, error) {
	var entries []map[string]any
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse fallback records: %w", err)
	}

	records := make([]grid.Record, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		id := grid.Stringify(entry["id"])
		if id == "" {
			return nil, fmt.Errorf("fallback record %d: missing id", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("fallback record %d: duplicate id %q", i+1, id)
		}
		seen[id] = struct{}{}

		delete(entry, "id")
		records = append(records, grid.Record{
			ID:     id,
			Origin: grid.OriginLocalFallback,
			Fields: normalizeYAMLMap(entry),
		})
	}
	return records, nil
}

// MustParseFallback is ParseFallback for embedded data known at build time.
func MustParseFallback(data []byte) []grid.Record {
	records, err := ParseFallback(data)
	if err != nil {
		panic(err)
	}
	return records
}

// ParseSeed decodes a YAML document mapping collection keys to record
// lists, as read by the seed command.
//
//	projects:
//	  - title: Folio
//	skills:
//	  - name: Go
//	    level: 90
func ParseSeed(data []byte) (map[string][]map[string]any, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	out := make(map[string][]map[string]any, len(raw))
	for key, entries := range raw {
		if _, ok := Get(key); !ok {
			return nil, fmt.Errorf("seed file: %w: %s", ErrUnknownCollection, key)
		}
		list := make([]map[string]any, len(entries))
		for i, e := range entries {
			list[i] = normalizeYAMLMap(e)
		}
		out[key] = list
	}
	return out, nil
}

// normalizeYAMLMap converts decoded YAML values into the shapes JSON
// decoding produces: float64 numbers, []any lists, map[string]any objects
// and dates as strings.
func normalizeYAMLMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case time.Time:
		return formatDate(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAMLValue(e)
		}
		return out
	case map[string]any:
		return normalizeYAMLMap(val)
	default:
		return v
	}
}
