// Package geometry — geometry.go
//
// Pure, side-effect-free geometric predicates for the corkboard.
//
// Every note is a fixed-size axis-aligned rectangle; every pin is a
// single integer point. None of these functions hold any state — board
// and note dimensions are passed explicitly so they stay trivially
// testable in isolation and never drift out of sync with a package
// global.

package geometry

// Point is an unordered pair of non-negative integer coordinates.
// Used both as a note origin and a pin location.
type Point struct {
	X int
	Y int
}

// Rect is an axis-aligned rectangle: origin (X, Y) plus width and
// height. All four fields are non-negative by construction.
type Rect struct {
	X, Y          int
	Width, Height int
}

// InsideBoard reports whether a rectangle of the given origin and
// dimensions fits entirely within a board of size boardW x boardH.
func InsideBoard(x, y, w, h, boardW, boardH int) bool {
	return x >= 0 && y >= 0 && x+w <= boardW && y+h <= boardH
}

// ContainsPoint reports whether (px, py) lies within r using half-open
// intervals on both axes: px in [r.X, r.X+r.Width), py in [r.Y, r.Y+r.Height).
func ContainsPoint(r Rect, px, py int) bool {
	return px >= r.X && px < r.X+r.Width && py >= r.Y && py < r.Y+r.Height
}

// RectContains reports whether b's closed rectangle lies entirely
// within a's closed rectangle. Edges may coincide.
func RectContains(a, b Rect) bool {
	return b.X >= a.X && b.Y >= a.Y &&
		b.X+b.Width <= a.X+a.Width &&
		b.Y+b.Height <= a.Y+a.Height
}

// CompleteOverlap reports whether one of a, b completely contains the
// other (in either direction). With uniform note dimensions this
// reduces to "shares an origin", but the general containment test is
// the definition used throughout the board package.
func CompleteOverlap(a, b Rect) bool {
	return RectContains(a, b) || RectContains(b, a)
}
