package scraper

import (
	"context"
	"strings"

	"github.com/rendis/placetap/internal/engine/browser"
)

// maxMatches caps how many nodes one locator is tried against.
const maxMatches = 8

// Locator is one way of finding a value: a CSS selector and where to read the value from.
type Locator struct {
	CSS string
	// Attr reads an attribute instead of the text content.
	Attr string
	// Rule overrides the chain rule for values read by this locator.
	Rule Rule
}

// Rule validates and rewrites a raw value. ok=false rejects it and the resolver moves on.
type Rule func(raw string) (value string, ok bool)

// Chain is an ordered fallback list of locators sharing one rule unless a locator brings its own.
type Chain struct {
	Name     string
	Locators []Locator
	Rule     Rule
}

func nonEmpty(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	return v, v != ""
}

func (c Chain) apply(loc Locator, raw string) (string, bool) {
	switch {
	case loc.Rule != nil:
		return loc.Rule(raw)
	case c.Rule != nil:
		return c.Rule(raw)
	}
	return nonEmpty(raw)
}

func read(ctx context.Context, sess browser.Session, n browser.Node, loc Locator) (string, error) {
	if loc.Attr == "" {
		return sess.Text(ctx, n)
	}
	v, _, err := sess.Attr(ctx, n, loc.Attr)
	return v, err
}

// Resolve returns the first value produced by chain within scope (nil scope means the page).
// A missing value is reported as ok=false; only errors that make the session unusable are returned.
func Resolve(ctx context.Context, sess browser.Session, scope browser.Node, chain Chain) (string, bool, error) {
	for _, loc := range chain.Locators {
		nodes, err := sess.FindAll(ctx, scope, loc.CSS)
		if err != nil {
			if browser.IsFatal(err) {
				return "", false, err
			}
			continue
		}
		for i, n := range nodes {
			if i == maxMatches {
				break
			}
			raw, err := read(ctx, sess, n, loc)
			if err != nil {
				if browser.IsFatal(err) {
					return "", false, err
				}
				continue
			}
			if v, ok := chain.apply(loc, raw); ok {
				return v, true, nil
			}
		}
	}
	return "", false, nil
}

// ResolveAll returns every distinct value the chain produces, in document order.
func ResolveAll(ctx context.Context, sess browser.Session, scope browser.Node, chain Chain) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, loc := range chain.Locators {
		nodes, err := sess.FindAll(ctx, scope, loc.CSS)
		if err != nil {
			if browser.IsFatal(err) {
				return out, err
			}
			continue
		}
		for _, n := range nodes {
			raw, err := read(ctx, sess, n, loc)
			if err != nil {
				if browser.IsFatal(err) {
					return out, err
				}
				continue
			}
			v, ok := chain.apply(loc, raw)
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

// FindFirst returns the first node matched by any selector, in order, or nil.
func FindFirst(ctx context.Context, sess browser.Session, scope browser.Node, selectors []string) (browser.Node, error) {
	for _, css := range selectors {
		n, err := sess.Find(ctx, scope, css)
		if err != nil {
			if browser.IsFatal(err) {
				return nil, err
			}
			continue
		}
		if n != nil {
			return n, nil
		}
	}
	return nil, nil
}

// FindAllFirst returns the matches of the first selector that matches anything.
func FindAllFirst(ctx context.Context, sess browser.Session, scope browser.Node, selectors []string) ([]browser.Node, string, error) {
	for _, css := range selectors {
		nodes, err := sess.FindAll(ctx, scope, css)
		if err != nil {
			if browser.IsFatal(err) {
				return nil, "", err
			}
			continue
		}
		if len(nodes) > 0 {
			return nodes, css, nil
		}
	}
	return nil, "", nil
}
