package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "wrapped permission denied", err: fmt.Errorf("delete 2 from projects: %w", store.ErrPermissionDenied), wantCode: "STORE001"},
		{name: "raw permission denied text", err: errors.New("ERROR: permission denied for table documents"), wantCode: "STORE001"},
		{name: "not found", err: fmt.Errorf("update: %w", store.ErrNotFound), wantCode: "STORE002"},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), wantCode: "STORE003"},
		{name: "deadline", err: errors.New("list projects: context deadline exceeded"), wantCode: "STORE005"},
		{name: "bulk in flight", err: grid.ErrBulkInFlight, wantCode: "GRID001"},
		{name: "empty selection", err: grid.ErrEmptySelection, wantCode: "GRID002"},
		{name: "unknown format", err: fmt.Errorf("%w: %q", grid.ErrUnknownFormat, "xml"), wantCode: "GRID003"},
		{name: "fallback record", err: fmt.Errorf("%w: sample-go", ErrFallbackRecord), wantCode: "REC001"},
		{name: "unknown collection", err: fmt.Errorf("%w: widgets", ErrUnknownCollection), wantCode: "REC002"},
		{name: "required field", err: ValidationErrors{{Field: "title", Message: "required field is empty"}}, wantCode: "VAL003"},
		{name: "invalid enum", err: errors.New("status: invalid enum: value must be one of: a, b"), wantCode: "VAL006"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "unknown error falls back", err: errors.New("something strange"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapErrorSentinelBeatsPattern(t *testing.T) {
	// The text mentions a timeout but the wrapped sentinel decides.
	err := fmt.Errorf("timeout while deleting: %w", store.ErrPermissionDenied)

	if got := MapError(err).Code; got != "STORE001" {
		t.Errorf("MapError() code = %q, want STORE001", got)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(grid.ErrEmptySelection)
	want := "No rows are selected (Code: GRID002). Select at least one row first"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(store.ErrNotFound) {
		t.Error("IsUserFacing(ErrNotFound) = false")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("IsUserFacing(boom) = true")
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Fatal("NewUserError(nil) should be nil")
	}

	ue := NewUserError(store.ErrPermissionDenied)
	if ue.User.Code != "STORE001" {
		t.Errorf("code = %q, want STORE001", ue.User.Code)
	}
	if !errors.Is(ue, store.ErrPermissionDenied) {
		t.Error("UserError should unwrap to the technical error")
	}
	if ue.Error() != ue.User.Message {
		t.Errorf("Error() = %q, want user message", ue.Error())
	}
}
