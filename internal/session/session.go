// Package session — session.go
//
// One Session per accepted connection. Performs the handshake, reads
// one line at a time, dispatches through internal/command and
// internal/corkboard, and writes exactly one reply per non-blank
// inbound line (blank lines are skipped).
//
// State machine: Handshaking -> Ready -> Closed. The only way out of
// Ready is DISCONNECT, EOF, or an I/O error; a malformed or rejected
// command keeps the session in Ready and produces a single ERROR line.
package session

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/corkboard/corkboard/internal/command"
	"github.com/corkboard/corkboard/internal/corkboard"
	"github.com/corkboard/corkboard/internal/wire"
)

// Metrics is the subset of internal/observability.Metrics a Session
// reports to. Declared here (not imported) so session never needs to
// know about Prometheus types directly; internal/observability.Metrics
// satisfies it structurally.
type Metrics interface {
	IncCommand(name string)
	IncError(category string)
	IncShakeRemoved(n int)
	IncCleared()
}

// state is the session's position in the Handshaking -> Ready -> Closed
// machine. It exists mostly for logging/assertions; the control flow
// in Run is the actual source of truth.
type state int

const (
	stateHandshaking state = iota
	stateReady
	stateClosed
)

// Session owns one accepted connection end to end.
type Session struct {
	conn    net.Conn
	board   *corkboard.State
	log     *zap.Logger
	id      string
	state   state
	metrics Metrics
}

// New creates a Session for a freshly accepted connection. metrics may
// be nil, in which case no metrics are recorded.
func New(conn net.Conn, board *corkboard.State, log *zap.Logger, metrics Metrics) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := newSessionID()
	return &Session{
		conn:    conn,
		board:   board,
		log:     log.With(zap.String("session_id", id)),
		id:      id,
		state:   stateHandshaking,
		metrics: metrics,
	}
}

func newSessionID() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}

// Run drives the session to completion: handshake, then read-dispatch-
// reply until DISCONNECT, EOF, or an I/O error. It always closes the
// connection before returning.
func (s *Session) Run() {
	defer s.conn.Close()
	defer func() { s.state = stateClosed }()

	w := bufio.NewWriter(s.conn)
	if err := s.handshake(w); err != nil {
		s.log.Warn("handshake failed", zap.Error(err))
		return
	}
	s.state = stateReady
	s.log.Debug("session ready")

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reply, disconnect := s.handleLine(line)
		for _, l := range reply {
			if _, err := w.WriteString(l); err != nil {
				s.log.Warn("write failed", zap.Error(err))
				return
			}
			if _, err := w.WriteString("\n"); err != nil {
				s.log.Warn("write failed", zap.Error(err))
				return
			}
		}
		if err := w.Flush(); err != nil {
			s.log.Warn("flush failed", zap.Error(err))
			return
		}
		if disconnect {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.log.Warn("read failed", zap.Error(err))
	}
}

// handshake writes the four fixed handshake lines in order.
func (s *Session) handshake(w *bufio.Writer) error {
	cfg := s.board.Config()
	lines := []string{
		fmt.Sprintf("BOARD %d %d", cfg.BoardW, cfg.BoardH),
		fmt.Sprintf("NOTE %d %d", cfg.NoteW, cfg.NoteH),
		"COLORS " + strings.Join(cfg.SortedColors(), " "),
		"OK READY",
	}
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// handleLine dispatches one well-formed-or-not line, returning the
// reply lines to send and whether the session should end after
// sending them.
func (s *Session) handleLine(line string) (reply []string, disconnect bool) {
	cmd, err := command.Parse(line)
	if err != nil {
		return s.reject(err)
	}

	switch c := cmd.(type) {
	case command.DisconnectCmd:
		s.recordCommand("DISCONNECT")
		return []string{"OK BYE"}, true
	case command.PostCmd:
		s.recordCommand("POST")
		id, err := s.board.Post(c.X, c.Y, c.Color, c.Message)
		if err != nil {
			return s.reject(err)
		}
		return []string{wire.FormatOK("POSTED", strconv.Itoa(id))}, false
	case command.PinCmd:
		s.recordCommand("PIN")
		if err := s.board.Pin(c.X, c.Y); err != nil {
			return s.reject(err)
		}
		return []string{wire.FormatOK("PINNED", strconv.Itoa(c.X), strconv.Itoa(c.Y))}, false
	case command.UnpinCmd:
		s.recordCommand("UNPIN")
		if err := s.board.Unpin(c.X, c.Y); err != nil {
			return s.reject(err)
		}
		return []string{wire.FormatOK("UNPINNED", strconv.Itoa(c.X), strconv.Itoa(c.Y))}, false
	case command.ShakeCmd:
		s.recordCommand("SHAKE")
		removed := s.board.Shake()
		if s.metrics != nil {
			s.metrics.IncShakeRemoved(removed)
		}
		return []string{wire.FormatOK("SHAKEN", "REMOVED", strconv.Itoa(removed))}, false
	case command.ClearCmd:
		s.recordCommand("CLEAR")
		s.board.Clear()
		if s.metrics != nil {
			s.metrics.IncCleared()
		}
		return []string{wire.FormatOK("CLEARED")}, false
	case command.GetPinsCmd:
		s.recordCommand("GET_PINS")
		return s.renderPins(), false
	case command.GetFilteredCmd:
		s.recordCommand("GET")
		reply, err := s.renderFiltered(c)
		if err != nil {
			return s.reject(err)
		}
		return reply, false
	default:
		return s.reject(wire.Errorf(wire.ServerError, "unhandled command type %T", cmd))
	}
}

func (s *Session) recordCommand(name string) {
	if s.metrics != nil {
		s.metrics.IncCommand(name)
	}
}

// reject records the error's metric, logs it at Debug (rejected
// commands never warrant Info or above — they are expected client
// traffic, not operational events), and renders the wire reply.
func (s *Session) reject(err error) (reply []string, disconnect bool) {
	cat := errorCategory(err)
	if s.metrics != nil {
		s.metrics.IncError(string(cat))
	}
	s.log.Debug("command rejected", zap.String("category", string(cat)), zap.Error(err))
	return []string{renderErr(err)}, false
}

func errorCategory(err error) wire.Category {
	var ce *wire.CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return wire.ServerError
}

func (s *Session) renderPins() []string {
	pins := s.board.PinsSorted()
	lines := make([]string, 0, len(pins))
	for _, p := range pins {
		lines = append(lines, fmt.Sprintf("PIN %d %d", p.X, p.Y))
	}
	return wire.FormatDataBlock(lines)
}

func (s *Session) renderFiltered(c command.GetFilteredCmd) (reply []string, err error) {
	filter := corkboard.Filter{
		HasColor:    c.HasColor,
		Color:       c.Color,
		HasContains: c.HasContains,
		Contains:    c.Contains,
		HasRefersTo: c.HasRefersTo,
		RefersTo:    c.RefersTo,
	}
	notes, err := s.board.NotesFiltered(filter)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(notes))
	for _, nv := range notes {
		status := "UNPINNED"
		if nv.Pinned {
			status = "PINNED"
		}
		lines = append(lines, fmt.Sprintf("NOTE %d %d %d %s %s %s",
			nv.Note.ID, nv.Note.X, nv.Note.Y, nv.Note.Color, status, nv.Note.Message))
	}
	return wire.FormatDataBlock(lines), nil
}

func renderErr(err error) string {
	var ce *wire.CategorizedError
	if errors.As(err, &ce) {
		return wire.FormatError(ce)
	}
	return wire.FormatError(wire.Errorf(wire.ServerError, "%v", err))
}
