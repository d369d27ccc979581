package core

// error_messages.go defines user-facing error messages with codes for
// support reference.
//
// # Error Codes Reference
//
// Store errors (STORE001-STORE099):
//
//	STORE001 - Permission denied: the store refused the write
//	STORE002 - Not found: the record no longer exists
//	STORE003 - Connection refused: the store is unreachable
//	STORE004 - Connection reset: the store connection was interrupted
//	STORE005 - Timeout: the store did not answer in time
//	STORE006 - Duplicate: a record with this id already exists
//
// Grid errors (GRID001-GRID099):
//
//	GRID001 - Bulk action in progress
//	GRID002 - Empty selection
//	GRID003 - Unknown export format
//
// Record errors (REC001-REC099):
//
//	REC001 - Built-in record: fallback records cannot be changed
//	REC002 - Unknown collection
//	REC003 - Field not bulk-editable
//
// Validation errors (VAL001-VAL099):
//
//	VAL001 - Invalid date
//	VAL002 - Invalid number
//	VAL003 - Required field empty
//	VAL004 - Unknown field
//	VAL005 - Invalid URL
//	VAL006 - Invalid enum value
//	VAL007 - Number out of range
//	VAL008 - Invalid yes/no value
//	VAL009 - Invalid object
//
// Request errors:
//
//	REQ001  - Request cancelled
//	RATE001 - Too many requests
//	ERR000  - Anything else; check the logs for the technical error
//
// Sentinel errors are matched first with errors.Is. Everything else is
// matched case-insensitively against errorPatterns with strings.Contains;
// the first matching pattern wins, so specific patterns come first.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// sentinelMessage maps a sentinel error to its user message.
type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{
		target: store.ErrPermissionDenied,
		msg: UserMessage{
			Message: "You do not have permission to change these records",
			Action:  "Check the store credentials or read-only setting",
			Code:    "STORE001",
		},
	},
	{
		target: store.ErrNotFound,
		msg: UserMessage{
			Message: "The record no longer exists",
			Action:  "Refresh the table and try again",
			Code:    "STORE002",
		},
	},
	{
		target: grid.ErrBulkInFlight,
		msg: UserMessage{
			Message: "Another bulk action is still running",
			Action:  "Wait for it to finish before changing the selection",
			Code:    "GRID001",
		},
	},
	{
		target: grid.ErrEmptySelection,
		msg: UserMessage{
			Message: "No rows are selected",
			Action:  "Select at least one row first",
			Code:    "GRID002",
		},
	},
	{
		target: grid.ErrUnknownFormat,
		msg: UserMessage{
			Message: "Unsupported export format",
			Action:  "Choose CSV or JSON",
			Code:    "GRID003",
		},
	},
	{
		target: ErrFallbackRecord,
		msg: UserMessage{
			Message: "Built-in sample records cannot be changed",
			Action:  "Create your own record instead",
			Code:    "REC001",
		},
	},
	{
		target: ErrUnknownCollection,
		msg: UserMessage{
			Message: "Unknown collection",
			Action:  "Verify the collection name is correct",
			Code:    "REC002",
		},
	},
	{
		target: ErrFieldNotBulkEditable,
		msg: UserMessage{
			Message: "This field cannot be changed in bulk",
			Action:  "Edit the records one at a time",
			Code:    "REC003",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Store connectivity
	{
		pattern: "permission denied",
		msg:     UserMessage{Message: "You do not have permission to change these records", Action: "Check the store credentials or read-only setting", Code: "STORE001"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to the record store", Action: "Please try again in a few moments", Code: "STORE003"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "The store connection was interrupted", Action: "Please try again", Code: "STORE004"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "The store did not answer in time", Action: "Please try again later", Code: "STORE005"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "The store did not answer in time", Action: "Please try again later", Code: "STORE005"},
	},
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A record with this id already exists", Action: "Refresh the table and try again", Code: "STORE006"},
	},

	// Validation
	{
		pattern: "invalid date",
		msg:     UserMessage{Message: "Invalid date format detected", Action: "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", Code: "VAL001"},
	},
	{
		pattern: "invalid number",
		msg:     UserMessage{Message: "Invalid number format detected", Action: "Use a plain decimal number", Code: "VAL002"},
	},
	{
		pattern: "required field",
		msg:     UserMessage{Message: "Required field is empty", Action: "Fill in every required field", Code: "VAL003"},
	},
	{
		pattern: "unknown field",
		msg:     UserMessage{Message: "The record contains an unknown field", Action: "Remove fields the collection does not define", Code: "VAL004"},
	},
	{
		pattern: "invalid url",
		msg:     UserMessage{Message: "Invalid link", Action: "Use a full address starting with https://", Code: "VAL005"},
	},
	{
		pattern: "invalid enum",
		msg:     UserMessage{Message: "Value is not in the allowed list", Action: "Check the allowed values for this field", Code: "VAL006"},
	},
	{
		pattern: "out of range",
		msg:     UserMessage{Message: "Number is outside the allowed range", Action: "Check the limits for this field", Code: "VAL007"},
	},
	{
		pattern: "invalid bool",
		msg:     UserMessage{Message: "Invalid yes/no value", Action: "Use yes/no, true/false, or 1/0", Code: "VAL008"},
	},
	{
		pattern: "invalid object",
		msg:     UserMessage{Message: "Invalid nested value", Action: "Provide a JSON object", Code: "VAL009"},
	},

	// Requests
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "REQ001"},
	},
	{
		pattern: "rate limit",
		msg:     UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors win over text patterns. If nothing matches, a generic
// fallback message with code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("delete: %w", store.ErrPermissionDenied)
//	msg := MapError(err)
//	// msg.Code == "STORE001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
