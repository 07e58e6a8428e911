// Package command — parser.go
//
// Translates one trimmed, non-empty inbound text line into a typed
// Command, or rejects it with an INVALID_FORMAT *wire.CategorizedError.
// Command keywords and the criterion names inside a filtered GET
// (color=, contains=, refersTo=) are matched case-insensitively; color
// values are canonicalized to upper case by the board layer, not here.
package command

import (
	"strconv"
	"strings"

	"github.com/corkboard/corkboard/internal/geometry"
	"github.com/corkboard/corkboard/internal/wire"
)

// Command is the sum type returned by Parse. Exactly one concrete type
// below is ever returned for a given successful parse.
type Command interface {
	isCommand()
}

type PostCmd struct {
	X, Y    int
	Color   string
	Message string
}

type PinCmd struct{ X, Y int }

type UnpinCmd struct{ X, Y int }

type ShakeCmd struct{}

type ClearCmd struct{}

type DisconnectCmd struct{}

type GetPinsCmd struct{}

type GetFilteredCmd struct {
	HasColor    bool
	Color       string
	HasContains bool
	Contains    geometry.Point
	HasRefersTo bool
	RefersTo    string
}

func (PostCmd) isCommand()        {}
func (PinCmd) isCommand()         {}
func (UnpinCmd) isCommand()       {}
func (ShakeCmd) isCommand()       {}
func (ClearCmd) isCommand()       {}
func (DisconnectCmd) isCommand()  {}
func (GetPinsCmd) isCommand()     {}
func (GetFilteredCmd) isCommand() {}

// Parse parses one already-trimmed, non-empty line into a Command.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, wire.Errorf(wire.InvalidFormat, "empty command")
	}

	keyword := strings.ToUpper(fields[0])
	switch keyword {
	case "POST":
		return parsePost(line)
	case "PIN":
		return parsePinUnpin(fields, true)
	case "UNPIN":
		return parsePinUnpin(fields, false)
	case "SHAKE":
		if len(fields) != 1 {
			return nil, wire.Errorf(wire.InvalidFormat, "SHAKE takes no arguments")
		}
		return ShakeCmd{}, nil
	case "CLEAR":
		if len(fields) != 1 {
			return nil, wire.Errorf(wire.InvalidFormat, "CLEAR takes no arguments")
		}
		return ClearCmd{}, nil
	case "DISCONNECT":
		if len(fields) != 1 {
			return nil, wire.Errorf(wire.InvalidFormat, "DISCONNECT takes no arguments")
		}
		return DisconnectCmd{}, nil
	case "GET":
		return parseGet(fields)
	default:
		return nil, wire.Errorf(wire.InvalidFormat, "unknown command %q", fields[0])
	}
}

// parsePost splits the line into exactly 3 leading tokens plus a raw
// remainder: POST <x> <y> <color> <message...>. The message may be
// empty, but the separator after the color must be present.
func parsePost(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 4 || (len(tokens) == 4 && !strings.HasSuffix(line, " ") && !strings.HasSuffix(line, "\t")) {
		return nil, wire.Errorf(wire.InvalidFormat, "POST requires x, y, color and a message")
	}
	x, err := parseNonNegInt(tokens[1], "x")
	if err != nil {
		return nil, err
	}
	y, err := parseNonNegInt(tokens[2], "y")
	if err != nil {
		return nil, err
	}
	color := tokens[3]

	message, err := messageRemainder(line, 4)
	if err != nil {
		return nil, err
	}
	return PostCmd{X: x, Y: y, Color: color, Message: message}, nil
}

// messageRemainder returns everything in line after skipping the first
// n whitespace-separated tokens (and the whitespace between them),
// validating it is well-formed UTF-8. May be empty.
func messageRemainder(line string, n int) (string, error) {
	rest := line
	for i := 0; i < n; i++ {
		rest = strings.TrimLeft(rest, " \t")
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			rest = ""
			break
		}
		rest = rest[idx:]
	}
	rest = strings.TrimLeft(rest, " \t")
	if !isValidUTF8(rest) {
		return "", wire.Errorf(wire.InvalidFormat, "message is not valid UTF-8")
	}
	return rest, nil
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "�") == s
}

func parsePinUnpin(fields []string, isPin bool) (Command, error) {
	name := "UNPIN"
	if isPin {
		name = "PIN"
	}
	if len(fields) != 3 {
		return nil, wire.Errorf(wire.InvalidFormat, "%s requires exactly x and y", name)
	}
	x, err := parseNonNegInt(fields[1], "x")
	if err != nil {
		return nil, err
	}
	y, err := parseNonNegInt(fields[2], "y")
	if err != nil {
		return nil, err
	}
	if isPin {
		return PinCmd{X: x, Y: y}, nil
	}
	return UnpinCmd{X: x, Y: y}, nil
}

// parseGet handles both "GET PINS" and the filtered GET form.
func parseGet(fields []string) (Command, error) {
	rest := fields[1:]
	if len(rest) == 1 && strings.EqualFold(rest[0], "PINS") {
		return GetPinsCmd{}, nil
	}

	var cmd GetFilteredCmd
	i := 0
	for i < len(rest) {
		tok := rest[i]
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "color="):
			if cmd.HasColor {
				return nil, wire.Errorf(wire.InvalidFormat, "color may appear at most once")
			}
			cmd.HasColor = true
			cmd.Color = tok[len("color="):]
			i++
		case strings.HasPrefix(lower, "refersto="):
			if cmd.HasRefersTo {
				return nil, wire.Errorf(wire.InvalidFormat, "refersTo may appear at most once")
			}
			cmd.HasRefersTo = true
			cmd.RefersTo = tok[len("refersTo="):]
			i++
		case strings.HasPrefix(lower, "contains="):
			if cmd.HasContains {
				return nil, wire.Errorf(wire.InvalidFormat, "contains may appear at most once")
			}
			attached := tok[len("contains="):]
			var xStr, yStr string
			if attached != "" {
				// contains=X Y : value attached to the key, X on the
				// same token, Y on the next token.
				xStr = attached
				if i+1 >= len(rest) {
					return nil, wire.Errorf(wire.InvalidFormat, "contains requires X and Y")
				}
				yStr = rest[i+1]
				i += 2
			} else {
				// contains= X Y : both values on the following tokens.
				if i+2 >= len(rest) {
					return nil, wire.Errorf(wire.InvalidFormat, "contains requires X and Y")
				}
				xStr = rest[i+1]
				yStr = rest[i+2]
				i += 3
			}
			x, err := parseNonNegInt(xStr, "contains.x")
			if err != nil {
				return nil, err
			}
			y, err := parseNonNegInt(yStr, "contains.y")
			if err != nil {
				return nil, err
			}
			cmd.HasContains = true
			cmd.Contains = geometry.Point{X: x, Y: y}
		default:
			return nil, wire.Errorf(wire.InvalidFormat, "unknown GET token %q", tok)
		}
	}
	return cmd, nil
}

func parseNonNegInt(s, field string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, wire.Errorf(wire.InvalidFormat, "%s must be a non-negative integer, got %q", field, s)
	}
	return n, nil
}
