// Package browser defines the browsing-session primitives the extraction engine
// is written against, with a chromedp implementation for live pages and a goquery
// implementation for static snapshots.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by WaitFor when the element never appeared.
	ErrTimeout = errors.New("wait timed out")
	// ErrSessionClosed means the session can no longer be driven. It is fatal for a run.
	ErrSessionClosed = errors.New("browser session closed")
	// ErrStaleNode is returned when a node handle no longer belongs to the current render.
	ErrStaleNode = errors.New("stale node")
)

// Node is an opaque handle to an element of the current render tree.
// Handles must not be kept across navigation or scroll actions.
type Node interface {
	isNode()
}

// Session is one page driven by the extraction engine. A nil scope means the whole page.
// Calls are sequential; a Session is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)

	// Find returns the first match or nil when nothing matches. It never waits.
	Find(ctx context.Context, scope Node, css string) (Node, error)
	// FindAll returns every match in document order. It never waits.
	FindAll(ctx context.Context, scope Node, css string) ([]Node, error)

	Text(ctx context.Context, n Node) (string, error)
	Attr(ctx context.Context, n Node, name string) (string, bool, error)

	Click(ctx context.Context, n Node) error
	ScrollIntoView(ctx context.Context, n Node) error
	// ScrollBy scrolls n, or the viewport when n is nil, by dy pixels.
	ScrollBy(ctx context.Context, n Node, dy int) error

	// WaitFor blocks until css matches or timeout elapses (ErrTimeout).
	WaitFor(ctx context.Context, css string, timeout time.Duration) error

	Back(ctx context.Context) error
	PressEscape(ctx context.Context) error

	Close() error
}

// IsFatal reports whether err means the session itself is unusable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout)
}
