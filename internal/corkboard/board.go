// Package corkboard — board.go
//
// The single shared in-memory board. One *State is constructed at
// startup and shared by every session; every mutating and querying
// operation acquires State.mu (a sync.RWMutex) so that concurrent
// sessions can never observe a torn rectangle set or a pinned-status
// computed against a half-applied mutation.
//
// Consistency model:
//   - Post, Pin, Unpin, Shake, Clear acquire the write lock: each is
//     fully atomic with respect to every other operation.
//   - PinsSorted, NotesFiltered acquire the read lock: many can run
//     concurrently, none overlaps a mutator.
//   - Pinned-ness is derived from the pins set on every read; it is
//     never cached on the Note.
//   - nextId is monotonic for the process lifetime; Clear does not
//     reset it.
package corkboard

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corkboard/corkboard/internal/contrib"
	"github.com/corkboard/corkboard/internal/geometry"
	"github.com/corkboard/corkboard/internal/wire"
)

// Note is an immutable record created by Post. Fields are never
// mutated after construction; Shake/Clear only ever remove entries
// from State.notes, they never edit one in place.
type Note struct {
	ID        int
	X, Y      int
	Color     string // canonical upper case
	Message   string
	CreatedAt time.Time
}

// rect returns n's rectangle using the board's shared note dimensions.
func (n Note) rect(noteW, noteH int) geometry.Rect {
	return geometry.Rect{X: n.X, Y: n.Y, Width: noteW, Height: noteH}
}

// Config is the board's immutable configuration, fixed at startup.
type Config struct {
	BoardW, BoardH int
	NoteW, NoteH   int
	ValidColors    map[string]struct{} // canonical upper-case color -> present
}

// NewConfig builds a Config from raw dimensions and a color list,
// canonicalizing every color to upper case.
func NewConfig(boardW, boardH, noteW, noteH int, colors []string) Config {
	set := make(map[string]struct{}, len(colors))
	for _, c := range colors {
		set[strings.ToUpper(c)] = struct{}{}
	}
	return Config{BoardW: boardW, BoardH: boardH, NoteW: noteW, NoteH: noteH, ValidColors: set}
}

// SortedColors returns the configured colors in ascending lexicographic
// order, for the handshake's COLORS line.
func (c Config) SortedColors() []string {
	out := make([]string, 0, len(c.ValidColors))
	for color := range c.ValidColors {
		out = append(out, color)
	}
	sort.Strings(out)
	return out
}

func (c Config) isValidColor(color string) bool {
	_, ok := c.ValidColors[strings.ToUpper(color)]
	return ok
}

// State is the shared mutable board. Construct with New.
type State struct {
	mu         sync.RWMutex
	cfg        Config
	notes      map[int]Note
	pins       map[geometry.Point]struct{}
	nextID     int
	validators []contrib.NoteValidator
	log        *zap.Logger
}

// Option configures a State at construction time.
type Option func(*State)

// WithValidators installs extra POST-time validators, run in order
// after the spec-mandated precondition checks.
func WithValidators(vs []contrib.NoteValidator) Option {
	return func(s *State) { s.validators = vs }
}

// WithLogger installs a logger; defaults to zap.NewNop() if omitted.
func WithLogger(log *zap.Logger) Option {
	return func(s *State) { s.log = log }
}

// New creates an empty board with the given configuration.
func New(cfg Config, opts ...Option) *State {
	s := &State{
		cfg:    cfg,
		notes:  make(map[int]Note),
		pins:   make(map[geometry.Point]struct{}),
		nextID: 1,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the board's immutable configuration.
func (s *State) Config() Config { return s.cfg }

// Post validates and inserts a new note, returning its assigned id.
// Preconditions are checked in this order; the first failure aborts
// before any mutation:
//  1. color must be in the configured set (INVALID_COLOR)
//  2. the rectangle must fit inside the board (OUT_OF_BOUNDS)
//  3. the rectangle must not completely overlap an existing note (OVERLAP_ERROR)
func (s *State) Post(x, y int, colorRaw, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	color := strings.ToUpper(colorRaw)
	if !s.cfg.isValidColor(color) {
		return 0, wire.Errorf(wire.InvalidColor, "Invalid color: %s", color)
	}

	if !geometry.InsideBoard(x, y, s.cfg.NoteW, s.cfg.NoteH, s.cfg.BoardW, s.cfg.BoardH) {
		return 0, wire.Errorf(wire.OutOfBounds, "Note at (%d, %d) would leave the board", x, y)
	}

	newRect := geometry.Rect{X: x, Y: y, Width: s.cfg.NoteW, Height: s.cfg.NoteH}
	for _, existing := range s.notes {
		if geometry.CompleteOverlap(newRect, existing.rect(s.cfg.NoteW, s.cfg.NoteH)) {
			return 0, wire.Errorf(wire.OverlapError,
				"Complete overlap not allowed with note id=%d", existing.ID)
		}
	}

	if err := s.runValidators(x, y, color, message); err != nil {
		return 0, err
	}

	id := s.nextID
	s.nextID++
	s.notes[id] = Note{ID: id, X: x, Y: y, Color: color, Message: message, CreatedAt: time.Now()}
	s.log.Info("note posted", zap.Int("id", id), zap.Int("x", x), zap.Int("y", y), zap.String("color", color))
	return id, nil
}

// runValidators executes every registered validator, recovering from a
// panic and reporting it as SERVER_ERROR so one bad plugin can never
// take down a session.
func (s *State) runValidators(x, y int, color, message string) (err error) {
	if len(s.validators) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = wire.Errorf(wire.ServerError, "validator panic: %v", r)
		}
	}()
	req := contrib.NoteRequest{X: x, Y: y, Color: color, Message: message}
	for _, v := range s.validators {
		if verr := v.Validate(req); verr != nil {
			return wire.Errorf(wire.ServerError, "rejected by validator %q: %v", v.Name(), verr)
		}
	}
	return nil
}

// Pin places a pin at (x, y). Fails PIN_MISS if no note currently
// contains that point. Re-pinning an already-pinned coordinate is a
// silent no-op success (the set absorbs the duplicate).
func (s *State) Pin(x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.anyNoteContains(x, y) {
		return wire.Errorf(wire.PinMiss, "No note covers (%d, %d)", x, y)
	}
	s.pins[geometry.Point{X: x, Y: y}] = struct{}{}
	return nil
}

// Unpin removes the pin at exactly (x, y). Fails NO_PIN if absent.
func (s *State) Unpin(x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := geometry.Point{X: x, Y: y}
	if _, ok := s.pins[p]; !ok {
		return wire.Errorf(wire.NoPin, "No pin at (%d, %d)", x, y)
	}
	delete(s.pins, p)
	return nil
}

// Shake removes every note that is not currently pinned and returns
// the count removed. Pins themselves are never removed by Shake; a pin
// whose covering notes all disappear becomes orphaned and simply
// covers nothing until a later POST or UNPIN.
func (s *State) Shake() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, n := range s.notes {
		if !s.isPinnedLocked(n) {
			delete(s.notes, id)
			removed++
		}
	}
	s.log.Info("board shaken", zap.Int("removed", removed))
	return removed
}

// Clear removes every note and every pin. nextID is not reset.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = make(map[int]Note)
	s.pins = make(map[geometry.Point]struct{})
	s.log.Info("board cleared")
}

// PinsSorted returns a snapshot of the current pins, sorted ascending
// by (y, x).
func (s *State) PinsSorted() []geometry.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]geometry.Point, 0, len(s.pins))
	for p := range s.pins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Filter expresses the optional, ANDed criteria for NotesFiltered.
type Filter struct {
	Color        string // any case; NotesFiltered upper-cases it; used only if HasColor
	HasColor     bool
	Contains     geometry.Point
	HasContains  bool
	RefersTo     string
	HasRefersTo  bool
}

// NotesFiltered returns notes matching every set criterion in f,
// ordered pinned-first (stable) then by descending id (newest first).
// The result is an independent snapshot of the state at read time.
func (s *State) NotesFiltered(f Filter) ([]NoteView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.HasColor {
		color := strings.ToUpper(f.Color)
		if !s.cfg.isValidColor(color) {
			return nil, wire.Errorf(wire.InvalidColor, "Invalid color: %s", color)
		}
		f.Color = color
	}

	matched := make([]NoteView, 0, len(s.notes))
	for _, n := range s.notes {
		if f.HasColor && n.Color != f.Color {
			continue
		}
		if f.HasContains && !geometry.ContainsPoint(n.rect(s.cfg.NoteW, s.cfg.NoteH), f.Contains.X, f.Contains.Y) {
			continue
		}
		if f.HasRefersTo && !strings.Contains(strings.ToLower(n.Message), strings.ToLower(f.RefersTo)) {
			continue
		}
		matched = append(matched, NoteView{Note: n, Pinned: s.isPinnedLocked(n)})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Pinned != matched[j].Pinned {
			return matched[i].Pinned // pinned first
		}
		return matched[i].Note.ID > matched[j].Note.ID // newest first
	})
	return matched, nil
}

// NoteView is a Note plus its derived pinned status, as returned by a
// read operation. It is a value snapshot, never aliased into State.
type NoteView struct {
	Note   Note
	Pinned bool
}

// anyNoteContains reports whether any live note covers (x, y). Caller
// must hold s.mu (read or write).
func (s *State) anyNoteContains(x, y int) bool {
	for _, n := range s.notes {
		if geometry.ContainsPoint(n.rect(s.cfg.NoteW, s.cfg.NoteH), x, y) {
			return true
		}
	}
	return false
}

// isPinnedLocked reports whether n is covered by at least one pin.
// Caller must hold s.mu (read or write).
func (s *State) isPinnedLocked(n Note) bool {
	rect := n.rect(s.cfg.NoteW, s.cfg.NoteH)
	for p := range s.pins {
		if geometry.ContainsPoint(rect, p.X, p.Y) {
			return true
		}
	}
	return false
}

// Stats is a point-in-time count snapshot, used by internal/observability
// to drive board-size gauges without exposing State internals.
type Stats struct {
	Notes int
	Pins  int
}

// Snapshot returns the current note and pin counts.
func (s *State) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Notes: len(s.notes), Pins: len(s.pins)}
}

// String is used only in log lines and test failure messages.
func (n Note) String() string {
	return fmt.Sprintf("Note{id=%d x=%d y=%d color=%s}", n.ID, n.X, n.Y, n.Color)
}
