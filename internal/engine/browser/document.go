package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Hooks script how a DocumentSession reacts to actions. Every hook is optional.
// Hooks run with the session lock released and may call Load, Document or Push.
type Hooks struct {
	// OnScroll runs after a scroll of target (nil for the viewport).
	OnScroll func(s *DocumentSession, target *goquery.Selection, dy int)
	// OnClick runs when a node is clicked.
	OnClick func(s *DocumentSession, target *goquery.Selection) error
	// OnNavigate returns the HTML served for url.
	OnNavigate func(s *DocumentSession, url string) (string, error)
	// OnEscape runs on PressEscape. Without it Escape does nothing.
	OnEscape func(s *DocumentSession) error
}

type page struct {
	url string
	doc *goquery.Document
}

// DocumentSession is a Session over a static HTML snapshot parsed with goquery.
// Scripted hooks stand in for the page's own behavior.
type DocumentSession struct {
	mu      sync.Mutex
	cur     page
	history []page
	gen     uint64
	closed  bool
	hooks   Hooks
	poll    time.Duration
}

type docNode struct {
	sel *goquery.Selection
	gen uint64
}

func (docNode) isNode() {}

// NewDocumentSession parses html as the page currently shown at url.
func NewDocumentSession(html, url string, hooks Hooks) (*DocumentSession, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &DocumentSession{
		cur:   page{url: url, doc: doc},
		hooks: hooks,
		poll:  5 * time.Millisecond,
	}, nil
}

// Document returns the live document. Mutating it changes what later queries see.
func (s *DocumentSession) Document() *goquery.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.doc
}

// Push shows html at url, keeping the current page in history.
func (s *DocumentSession) Push(html, url string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, s.cur)
	s.cur = page{url: url, doc: doc}
	s.gen++
	return nil
}

// SetURL changes the reported location without touching the document.
func (s *DocumentSession) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.url = url
}

func (s *DocumentSession) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *DocumentSession) sel(n Node) (*goquery.Selection, error) {
	dn, ok := n.(docNode)
	if !ok || dn.sel == nil {
		return nil, fmt.Errorf("not a document node: %T", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if dn.gen != s.gen {
		return nil, ErrStaleNode
	}
	return dn.sel, nil
}

func (s *DocumentSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.check(); err != nil {
		return err
	}
	if s.hooks.OnNavigate == nil {
		s.SetURL(url)
		return nil
	}
	html, err := s.hooks.OnNavigate(s, url)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return s.Push(html, url)
}

func (s *DocumentSession) Location(ctx context.Context) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.url, nil
}

func (s *DocumentSession) find(scope Node, css string) (*goquery.Selection, error) {
	if scope == nil {
		if err := s.check(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cur.doc.Find(css), nil
	}
	sel, err := s.sel(scope)
	if err != nil {
		return nil, err
	}
	return sel.Find(css), nil
}

func (s *DocumentSession) Find(ctx context.Context, scope Node, css string) (Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := s.find(scope, css)
	if err != nil || found.Length() == 0 {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return docNode{sel: found.First(), gen: s.gen}, nil
}

func (s *DocumentSession) FindAll(ctx context.Context, scope Node, css string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := s.find(scope, css)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, docNode{sel: sel, gen: gen})
	})
	return out, nil
}

func (s *DocumentSession) Text(ctx context.Context, n Node) (string, error) {
	sel, err := s.sel(n)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (s *DocumentSession) Attr(ctx context.Context, n Node, name string) (string, bool, error) {
	sel, err := s.sel(n)
	if err != nil {
		return "", false, err
	}
	v, ok := sel.Attr(name)
	return v, ok, nil
}

func (s *DocumentSession) Click(ctx context.Context, n Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel, err := s.sel(n)
	if err != nil {
		return err
	}
	if s.hooks.OnClick == nil {
		return nil
	}
	return s.hooks.OnClick(s, sel)
}

func (s *DocumentSession) ScrollIntoView(ctx context.Context, n Node) error {
	_, err := s.sel(n)
	return err
}

func (s *DocumentSession) ScrollBy(ctx context.Context, n Node, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var target *goquery.Selection
	if n != nil {
		sel, err := s.sel(n)
		if err != nil {
			return err
		}
		target = sel
	} else if err := s.check(); err != nil {
		return err
	}
	if s.hooks.OnScroll != nil {
		s.hooks.OnScroll(s, target, dy)
	}
	return nil
}

// WaitFor polls the live document until css matches.
func (s *DocumentSession) WaitFor(ctx context.Context, css string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.poll)
	defer tick.Stop()
	for {
		found, err := s.find(nil, css)
		if err != nil {
			return err
		}
		if found.Length() > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("waiting for %q: %w after %s", css, ErrTimeout, timeout)
		case <-tick.C:
		}
	}
}

func (s *DocumentSession) Back(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.history) == 0 {
		return fmt.Errorf("no history to go back to")
	}
	s.cur = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.gen++
	return nil
}

func (s *DocumentSession) PressEscape(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.hooks.OnEscape == nil {
		return nil
	}
	return s.hooks.OnEscape(s)
}

func (s *DocumentSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
