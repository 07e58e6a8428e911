// Package wire — wire.go
//
// Shared error taxonomy and reply-line formatting for the corkboard
// protocol, used by internal/command, internal/corkboard, and
// internal/session so all three agree on the same category tokens and
// line shapes.
//
// Category tokens (wire-visible, never renamed without breaking client
// compatibility):
//
//	INVALID_FORMAT  — command syntax, arity, unknown token, bad integer.
//	OUT_OF_BOUNDS   — POST rectangle would leave the board.
//	INVALID_COLOR   — color not in the configured set.
//	OVERLAP_ERROR   — POST rectangle completely overlaps an existing note.
//	PIN_MISS        — PIN at a coordinate covered by no note.
//	NO_PIN          — UNPIN at a coordinate with no pin.
//	SERVER_ERROR    — unexpected internal failure; session continues.
package wire

import (
	"fmt"
	"strings"
)

// Category is a wire-visible error category token.
type Category string

const (
	InvalidFormat Category = "INVALID_FORMAT"
	OutOfBounds   Category = "OUT_OF_BOUNDS"
	InvalidColor  Category = "INVALID_COLOR"
	OverlapError  Category = "OVERLAP_ERROR"
	PinMiss       Category = "PIN_MISS"
	NoPin         Category = "NO_PIN"
	ServerError   Category = "SERVER_ERROR"
)

// CategorizedError is the one error type every package in this module
// returns for a client-visible failure. The session layer renders it
// with FormatError; nothing else inspects its string form.
type CategorizedError struct {
	Category Category
	Message  string
}

func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Errorf builds a *CategorizedError with a formatted message.
func Errorf(cat Category, format string, args ...interface{}) *CategorizedError {
	return &CategorizedError{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// FormatOK renders a single-line "OK ..." reply from pre-joined fields.
func FormatOK(fields ...string) string {
	return "OK " + strings.Join(fields, " ")
}

// FormatError renders a single-line "ERROR <CATEGORY> <message>" reply.
func FormatError(err *CategorizedError) string {
	return fmt.Sprintf("ERROR %s %s", err.Category, err.Message)
}

// FormatDataBlock renders a multi-line "DATA BEGIN" ... "DATA END"
// envelope around the given already-formatted body lines.
func FormatDataBlock(lines []string) []string {
	out := make([]string, 0, len(lines)+2)
	out = append(out, "DATA BEGIN")
	out = append(out, lines...)
	out = append(out, "DATA END")
	return out
}
