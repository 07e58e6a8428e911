// Package contrib — validator.go
//
// Plugin interface for custom note validators.
//
// CORKBOARD introduces a contrib/ extension point analogous to the
// pluggable anomaly scorer of the system this package was generalized
// from. The primary extension point is the NoteValidator interface,
// which lets an operator layer message-content policy (profanity
// filters, length caps, rate limits keyed on message content, …) on
// top of the built-in geometric and color invariants without forking
// the corkboard package.
//
// Plugin registration:
//
//	Plugins register themselves in an init() function using
//	RegisterValidator(). The server selects active validators via the
//	ambient config's "validators" list; an empty list (the default)
//	runs the board with no extra policy.
//
// Plugin contract:
//   - Validate() must be goroutine-safe; it runs under the board's
//     write lock, so it must also be fast — no blocking I/O, no
//     unbounded work.
//   - Validate() must not panic. A panicking validator is recovered by
//     the board and reported as SERVER_ERROR; the offending note is
//     never inserted.
//   - Name() must return a stable, unique string (used as a config key
//     and in log lines).
package contrib

import "fmt"

// NoteRequest is the data a NoteValidator inspects before a note is
// committed to the board.
type NoteRequest struct {
	X, Y    int
	Color   string // already canonicalized to upper case
	Message string
}

// NoteValidator is the plugin contract for custom POST-time policy.
type NoteValidator interface {
	// Name returns a stable, unique identifier for this validator.
	Name() string

	// Validate returns a non-nil error to reject the note. The error
	// text becomes part of the SERVER_ERROR reply message.
	Validate(req NoteRequest) error
}

var registry = map[string]NoteValidator{}

// RegisterValidator registers a NoteValidator under its Name(). Called
// from plugin init() functions; panics on a duplicate name since that
// indicates a build-time misconfiguration, not a runtime condition.
func RegisterValidator(v NoteValidator) {
	name := v.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("contrib: duplicate validator name %q", name))
	}
	registry[name] = v
}

// Lookup returns the registered validator with the given name, or
// false if none is registered under that name.
func Lookup(name string) (NoteValidator, bool) {
	v, ok := registry[name]
	return v, ok
}

// Resolve looks up each name in order, returning an error on the first
// unknown name. Called by the server entrypoint at startup to turn the
// ambient config's list of validator names into a concrete slice.
func Resolve(names []string) ([]NoteValidator, error) {
	out := make([]NoteValidator, 0, len(names))
	for _, name := range names {
		v, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("contrib: unknown validator %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}
