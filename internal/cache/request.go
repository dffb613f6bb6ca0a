package cache

import (
	"fmt"
	"path/filepath"

	"minimg/internal/decode"
)

type requestKind int

const (
	kindMove requestKind = iota
	kindGoto
	kindExit
)

// Request asks the loader to resolve an image: a relative move, an absolute
// index, or Exit.
type Request struct {
	kind  requestKind
	dir   Direction
	index int
	seq   uint64
}

// Move builds a relative request
func Move(dir Direction) Request {
	return Request{kind: kindMove, dir: dir}
}

// Goto builds an absolute request. Out-of-range indices are clamped.
func Goto(index int) Request {
	return Request{kind: kindGoto, index: index}
}

// Exit is the request that stops the loader
var Exit = Request{kind: kindExit}

// IsExit reports whether r is the Exit request
func (r Request) IsExit() bool {
	return r.kind == kindExit
}

func (r Request) String() string {
	switch r.kind {
	case kindMove:
		return "move " + r.dir.String()
	case kindGoto:
		return fmt.Sprintf("goto %d", r.index)
	default:
		return "exit"
	}
}

// target resolves r against the current focus
func (r Request) target(focus, n int) int {
	if r.kind == kindGoto {
		return clamp(r.index, n)
	}
	return Next(focus, r.dir, n)
}

// Result is the resolution of a request: the decoded image, or the reason it
// could not be decoded.
type Result struct {
	// Seq is the sequence number of the request this answers
	Seq   uint64
	Index int
	Total int
	Path  string
	Image *decode.Image
	Err   error
}

// OK reports whether the image decoded
func (r Result) OK() bool {
	return r.Err == nil && r.Image != nil
}

// Identity is the title handed to display sinks, e.g. "3/12 beach.jpg"
func (r Result) Identity() string {
	return fmt.Sprintf("%d/%d %s", r.Index+1, r.Total, filepath.Base(r.Path))
}
