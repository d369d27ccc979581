package core

// validation.go checks record input against a collection's field specs
// before it reaches the store.
//
// Validation returns every problem at once so a form can highlight all bad
// fields, and normalizes accepted values into the canonical shapes the grid
// comparators expect (numbers as float64, dates as YYYY-MM-DD, lists as
// []string, enum values in their declared spelling).

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/folio/internal/grid"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every field error of one input.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// ErrValidation matches any ValidationErrors with errors.Is.
var ErrValidation = errors.New("validation failed")

func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ValidateFields checks fields against specs and returns the normalized
// values. With partial set (updates), absent required fields are allowed
// and empty values become nil, which removes the field from the stored
// record. Unknown fields are rejected.
func ValidateFields(specs []FieldSpec, fields map[string]any, partial bool) (map[string]any, error) {
	var errs ValidationErrors
	out := make(map[string]any, len(fields))

	known := make(map[string]FieldSpec, len(specs))
	for _, spec := range specs {
		known[spec.Name] = spec
	}
	for key, v := range fields {
		if _, ok := known[key]; !ok {
			errs = append(errs, ValidationError{Field: key, Value: grid.Stringify(v), Message: "unknown field"})
		}
	}

	for _, spec := range specs {
		raw, present := fields[spec.Name]
		if !present && partial {
			continue
		}

		if isEmpty(raw) {
			if spec.Required {
				errs = append(errs, ValidationError{Field: spec.Name, Message: "required field is empty"})
			} else if partial {
				out[spec.Name] = nil
			}
			continue
		}

		v, err := ValidateValue(raw, spec)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Value:   grid.Stringify(raw),
				Message: err.Error(),
			})
			continue
		}
		out[spec.Name] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ValidateValue validates and normalizes one non-empty value.
func ValidateValue(v any, spec FieldSpec) (any, error) {
	switch spec.Type {
	case FieldEnum:
		s := strings.TrimSpace(grid.Stringify(v))
		if len(spec.EnumValues) == 0 {
			return s, nil
		}
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, s) {
				return ev, nil
			}
		}
		return nil, fmt.Errorf("invalid enum: value must be one of: %s", strings.Join(spec.EnumValues, ", "))

	case FieldNumber:
		f, ok := grid.ParseNumber(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.New("invalid number format")
		}
		if spec.Min != nil && f < *spec.Min {
			return nil, fmt.Errorf("out of range: must be at least %v", *spec.Min)
		}
		if spec.Max != nil && f > *spec.Max {
			return nil, fmt.Errorf("out of range: must be at most %v", *spec.Max)
		}
		return f, nil

	case FieldDate:
		t, ok := grid.ParseDate(v)
		if !ok {
			return nil, errors.New("invalid date format (use YYYY-MM-DD or similar)")
		}
		return formatDate(t), nil

	case FieldBool:
		b, ok := grid.ParseBool(v)
		if !ok {
			return nil, errors.New("invalid bool: must be yes/no, true/false, or 1/0")
		}
		return b, nil

	case FieldList:
		return normalizeList(v), nil

	case FieldURL:
		s := strings.TrimSpace(grid.Stringify(v))
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.New("invalid url: must be an absolute http(s) address")
		}
		return s, nil

	case FieldObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, errors.New("invalid object: must be a JSON object")
		}
		return obj, nil

	default:
		s := strings.TrimSpace(grid.Stringify(v))
		if spec.Normalizer != nil {
			s = spec.Normalizer(s)
		}
		return s, nil
	}
}

// normalizeList accepts a list or a comma-separated string.
func normalizeList(v any) []string {
	var parts []string
	if s, ok := v.(string); ok {
		parts = strings.Split(s, ",")
	} else {
		parts = grid.Strings(v)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.UTC().Format(time.RFC3339)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
