package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

var testSpecs = []FieldSpec{
	{Name: "title", Type: FieldText, Required: true},
	{Name: "status", Type: FieldEnum, EnumValues: []string{"planning", "in-progress"}},
	{Name: "level", Type: FieldNumber, Min: Bound(0), Max: Bound(100)},
	{Name: "started", Type: FieldDate},
	{Name: "featured", Type: FieldBool},
	{Name: "tags", Type: FieldList},
	{Name: "link", Type: FieldURL},
	{Name: "client", Type: FieldObject},
	{Name: "code", Type: FieldText, Normalizer: strings.ToUpper},
}

func TestValidateFieldsNormalizes(t *testing.T) {
	got, err := ValidateFields(testSpecs, map[string]any{
		"title":    "  Folio ",
		"status":   "IN-PROGRESS",
		"level":    "85",
		"started":  "03/01/2024",
		"featured": "yes",
		"tags":     "go, sql ,,",
		"link":     "https://example.com/x",
		"client":   map[string]any{"name": "Acme"},
		"code":     "ab",
	}, false)
	if err != nil {
		t.Fatalf("ValidateFields() error = %v", err)
	}

	want := map[string]any{
		"title":    "Folio",
		"status":   "in-progress",
		"level":    85.0,
		"started":  "2024-03-01",
		"featured": true,
		"tags":     []string{"go", "sql"},
		"link":     "https://example.com/x",
		"client":   map[string]any{"name": "Acme"},
		"code":     "AB",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ValidateFields() =\n%#v\nwant\n%#v", got, want)
	}
}

func TestValidateFieldsCollectsAllErrors(t *testing.T) {
	_, err := ValidateFields(testSpecs, map[string]any{
		"status":  "done",
		"level":   150,
		"started": "someday",
		"link":    "ftp://example.com",
		"color":   "red",
	}, false)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = false")
	}

	fields := map[string]string{}
	for _, ve := range verrs {
		fields[ve.Field] = ve.Message
	}

	wantPrefixes := map[string]string{
		"title":   "required field",
		"status":  "invalid enum",
		"level":   "out of range",
		"started": "invalid date",
		"link":    "invalid url",
		"color":   "unknown field",
	}
	for field, prefix := range wantPrefixes {
		msg, ok := fields[field]
		if !ok {
			t.Errorf("missing error for %s", field)
			continue
		}
		if !strings.HasPrefix(msg, prefix) {
			t.Errorf("%s: message %q, want prefix %q", field, msg, prefix)
		}
	}
	if len(verrs) != len(wantPrefixes) {
		t.Errorf("got %d errors, want %d: %v", len(verrs), len(wantPrefixes), err)
	}
}

func TestValidateFieldsPartial(t *testing.T) {
	got, err := ValidateFields(testSpecs, map[string]any{
		"status": "planning",
		"tags":   "",
	}, true)
	if err != nil {
		t.Fatalf("ValidateFields() error = %v", err)
	}

	want := map[string]any{"status": "planning", "tags": nil}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ValidateFields() = %#v, want %#v", got, want)
	}

	if _, err := ValidateFields(testSpecs, map[string]any{"title": ""}, true); err == nil {
		t.Error("clearing a required field should fail")
	}
}

func TestValidateValueObjectAndBool(t *testing.T) {
	if _, err := ValidateValue("not an object", FieldSpec{Type: FieldObject}); err == nil {
		t.Error("string accepted as object")
	}
	if _, err := ValidateValue("maybe", FieldSpec{Type: FieldBool}); err == nil {
		t.Error("maybe accepted as bool")
	}
	got, err := ValidateValue(0, FieldSpec{Type: FieldBool})
	if err != nil || got != false {
		t.Errorf("ValidateValue(0) = %v, %v", got, err)
	}
}
