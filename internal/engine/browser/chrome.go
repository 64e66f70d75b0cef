package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

const (
	textJS   = `function() { return (this.innerText || this.textContent || "").trim(); }`
	attrJS   = `function(name) { const v = this.getAttribute(name); return v === null ? {ok: false, v: ""} : {ok: true, v: v}; }`
	scrollJS = `function(dy) { this.scrollTop += dy; }`
)

// ChromeConfig configures the browser a ChromeSession launches.
type ChromeConfig struct {
	Headless bool
	// ProxyURL is passed to Chrome as --proxy-server when set.
	ProxyURL string
	// UserAgent overrides the rotated default.
	UserAgent string
	// ExecPath points at a Chrome binary; empty lets chromedp find one.
	ExecPath string
	Width    int
	Height   int
	// OpTimeout bounds every primitive that is not a navigation or an explicit wait.
	OpTimeout time.Duration
	// NavTimeout bounds Navigate and Back.
	NavTimeout time.Duration
}

// ChromeSession drives a single Chrome tab through the DevTools protocol.
type ChromeSession struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	cfg         ChromeConfig
	gen         atomic.Uint64
}

type chromeNode struct {
	n   *cdp.Node
	gen uint64
}

func (chromeNode) isNode() {}

// NewChromeSession launches Chrome and opens one tab. The tab outlives ctx; call Close to release it.
func NewChromeSession(ctx context.Context, cfg ChromeConfig) (*ChromeSession, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 1366, 768
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 10 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgents[rand.IntN(len(userAgents))]
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and binds it to the context it gets, so it must be
	// tabCtx itself; the startup bound is enforced from outside.
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(tabCtx) }()
	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(cfg.NavTimeout):
		err = fmt.Errorf("%w after %s", ErrTimeout, cfg.NavTimeout)
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &ChromeSession{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		cfg:         cfg,
	}, nil
}

// run executes actions on the tab, bounded by ctx, the session and limit.
func (s *ChromeSession) run(ctx context.Context, limit time.Duration, actions ...chromedp.Action) error {
	if s.tabCtx.Err() != nil {
		return ErrSessionClosed
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, limit)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	switch {
	case s.tabCtx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrSessionClosed, err)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, limit)
	}
	return err
}

// callOnNode runs fn with the element as this. The remote object is released afterwards.
func callOnNode(ctx context.Context, n *cdp.Node, fn string, res any, args ...any) error {
	obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
	if err != nil {
		return fmt.Errorf("resolving node: %w", err)
	}
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

	return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(obj.ObjectID)
	}, args...).Do(ctx)
}

func (s *ChromeSession) node(n Node) (*cdp.Node, error) {
	cn, ok := n.(chromeNode)
	if !ok || cn.n == nil {
		return nil, fmt.Errorf("not a chrome node: %T", n)
	}
	if cn.gen != s.gen.Load() {
		return nil, ErrStaleNode
	}
	return cn.n, nil
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	s.gen.Add(1)
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (s *ChromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.cfg.OpTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *ChromeSession) query(ctx context.Context, scope Node, css string) ([]*cdp.Node, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if scope != nil {
		sn, err := s.node(scope)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(sn))
	}
	var nodes []*cdp.Node
	if err := s.run(ctx, s.cfg.OpTimeout, chromedp.Nodes(css, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("querying %q: %w", css, err)
	}
	return nodes, nil
}

func (s *ChromeSession) Find(ctx context.Context, scope Node, css string) (Node, error) {
	nodes, err := s.query(ctx, scope, css)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return chromeNode{n: nodes[0], gen: s.gen.Load()}, nil
}

func (s *ChromeSession) FindAll(ctx context.Context, scope Node, css string) ([]Node, error) {
	nodes, err := s.query(ctx, scope, css)
	if err != nil {
		return nil, err
	}
	gen := s.gen.Load()
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, chromeNode{n: n, gen: gen})
	}
	return out, nil
}

func (s *ChromeSession) Text(ctx context.Context, n Node) (string, error) {
	cn, err := s.node(n)
	if err != nil {
		return "", err
	}
	var text string
	err = s.run(ctx, s.cfg.OpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, cn, textJS, &text)
	}))
	return text, err
}

func (s *ChromeSession) Attr(ctx context.Context, n Node, name string) (string, bool, error) {
	cn, err := s.node(n)
	if err != nil {
		return "", false, err
	}
	var res struct {
		OK bool   `json:"ok"`
		V  string `json:"v"`
	}
	err = s.run(ctx, s.cfg.OpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, cn, attrJS, &res, name)
	}))
	return res.V, res.OK, err
}

func (s *ChromeSession) Click(ctx context.Context, n Node) error {
	cn, err := s.node(n)
	if err != nil {
		return err
	}
	return s.run(ctx, s.cfg.OpTimeout, chromedp.MouseClickNode(cn))
}

func (s *ChromeSession) ScrollIntoView(ctx context.Context, n Node) error {
	cn, err := s.node(n)
	if err != nil {
		return err
	}
	return s.run(ctx, s.cfg.OpTimeout, dom.ScrollIntoViewIfNeeded().WithNodeID(cn.NodeID))
}

func (s *ChromeSession) ScrollBy(ctx context.Context, n Node, dy int) error {
	if n == nil {
		return s.run(ctx, s.cfg.OpTimeout, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil))
	}
	cn, err := s.node(n)
	if err != nil {
		return err
	}
	return s.run(ctx, s.cfg.OpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, cn, scrollJS, nil, dy)
	}))
}

func (s *ChromeSession) WaitFor(ctx context.Context, css string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(css, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("waiting for %q: %w", css, err)
	}
	return nil
}

func (s *ChromeSession) Back(ctx context.Context) error {
	s.gen.Add(1)
	return s.run(ctx, s.cfg.NavTimeout, chromedp.NavigateBack())
}

func (s *ChromeSession) PressEscape(ctx context.Context) error {
	return s.run(ctx, s.cfg.OpTimeout, chromedp.KeyEvent(kb.Escape))
}

// Close shuts the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.tabCancel()
	s.allocCancel()
	return nil
}
