package scraper

import (
	"context"
	"strings"

	"github.com/rendis/placetap/internal/engine/browser"
)

// chromePhrases mark UI controls, legends and keyboard hints that share markup with result cards.
var chromePhrases = []string{
	"collapse side panel",
	"expand side panel",
	"use arrow keys",
	"arrow keys to navigate",
	"available search options",
	"search options",
	"to 5 stars",
	"of 5 stars",
	"map ·",
	"keyboard shortcuts",
}

// identityAttrs carry a place/content identifier on real result cards.
var identityAttrs = []string{"data-cid", "data-result-index", "data-place-id"}

// minCardText is the shortest inner text accepted from a card without identity markers.
const minCardText = 10

// isChromeText reports UI text. A bare rating legend counts; "stars" inside a longer text does not.
func isChromeText(s string) bool {
	if legendRe.MatchString(s) {
		return true
	}
	lower := strings.ToLower(s)
	for _, p := range chromePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsBusinessCard decides whether n is a business entry rather than UI chrome.
func IsBusinessCard(ctx context.Context, sess browser.Session, n browser.Node) (bool, error) {
	text, err := sess.Text(ctx, n)
	if err != nil {
		return false, err
	}
	label, _, err := sess.Attr(ctx, n, "aria-label")
	if err != nil {
		return false, err
	}
	if isChromeText(text) || isChromeText(label) {
		return false, nil
	}

	for _, attr := range identityAttrs {
		if _, ok, err := sess.Attr(ctx, n, attr); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
	}
	if href, _, err := sess.Attr(ctx, n, "href"); err != nil {
		return false, err
	} else if strings.Contains(href, "/maps/place/") {
		return true, nil
	}
	link, err := sess.Find(ctx, n, `a[href*="/maps/place/"]`)
	if err != nil {
		return false, err
	}
	if link != nil {
		return true, nil
	}

	return len([]rune(strings.TrimSpace(text))) > minCardText, nil
}

// FindCards returns the business cards currently rendered, in document order.
// Nodes that fail identification are dropped; only fatal session errors are returned.
func FindCards(ctx context.Context, sess browser.Session) ([]browser.Node, error) {
	nodes, _, err := FindAllFirst(ctx, sess, nil, cardSelectors)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		if nodes, err = sess.FindAll(ctx, nil, cardLastResort); err != nil {
			if browser.IsFatal(err) {
				return nil, err
			}
			return nil, nil
		}
	}

	cards := make([]browser.Node, 0, len(nodes))
	for _, n := range nodes {
		ok, err := IsBusinessCard(ctx, sess, n)
		if err != nil {
			if browser.IsFatal(err) {
				return nil, err
			}
			continue
		}
		if ok {
			cards = append(cards, n)
		}
	}
	return cards, nil
}

// countCards counts raw card matches without identification, which is what pagination tracks.
func countCards(ctx context.Context, sess browser.Session) (int, error) {
	nodes, _, err := FindAllFirst(ctx, sess, nil, cardSelectors)
	return len(nodes), err
}
