package grid

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format is an export serialization format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for export formats other than csv and json.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat parses a format name (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ExportFile is a serialized export ready to hand to a download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        string
}

// NewExportFile names body after the collection and the export date,
// e.g. "projects-2024-05-01.csv".
func NewExportFile(collection string, format Format, body string, now time.Time) ExportFile {
	return ExportFile{
		Filename:    fmt.Sprintf("%s-%s.%s", collection, now.UTC().Format("2006-01-02"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}
}

// Serialize renders records projected onto fields.
//
// CSV output has a header row of field keys followed by one row per record,
// quoted per RFC 4180, with list values joined by ", ". JSON output is an
// indented envelope {exportedAt, count, records} whose record objects carry
// the id plus the requested fields in order. An empty record slice yields a
// header-only CSV or an empty records array.
func Serialize(records []Record, fields []string, format Format, now time.Time) (string, error) {
	switch format {
	case FormatCSV:
		return serializeCSV(records, fields)
	case FormatJSON:
		return serializeJSON(records, fields, now)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func serializeCSV(records []Record, fields []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(fields); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(fields))
	for _, rec := range records {
		for i, f := range fields {
			v, _ := rec.Value(f)
			row[i] = formatCellForExport(v)
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row %s: %w", rec.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

// formatCellForExport formats a field value for a CSV cell.
func formatCellForExport(v any) string {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	default:
		return Stringify(v)
	}
}

// exportEnvelope is the JSON export document.
type exportEnvelope struct {
	ExportedAt string           `json:"exportedAt"`
	Count      int              `json:"count"`
	Records    []projectedEntry `json:"records"`
}

// projectedEntry is a record restricted to a field list. It marshals as a
// JSON object whose keys keep the field order.
type projectedEntry struct {
	keys   []string
	values []any
}

func (p projectedEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func project(rec Record, fields []string) projectedEntry {
	p := projectedEntry{
		keys:   []string{"id"},
		values: []any{rec.ID},
	}
	for _, f := range fields {
		if f == "id" {
			continue
		}
		v, _ := rec.Value(f)
		p.keys = append(p.keys, f)
		p.values = append(p.values, v)
	}
	return p
}

func serializeJSON(records []Record, fields []string, now time.Time) (string, error) {
	env := exportEnvelope{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(records),
		Records:    make([]projectedEntry, 0, len(records)),
	}
	for _, rec := range records {
		env.Records = append(env.Records, project(rec, fields))
	}

	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json export: %w", err)
	}
	return string(b), nil
}
