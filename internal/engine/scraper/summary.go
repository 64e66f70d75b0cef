package scraper

import (
	"context"
	"strconv"
	"time"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

// ExtractSummary builds a best-effort record from a result card without leaving the list.
// It returns nil when no name could be found.
func ExtractSummary(ctx context.Context, sess browser.Session, card browser.Node, category string) (*model.PlaceRecord, error) {
	name, ok, err := cardNameOf(ctx, sess, card)
	if err != nil || !ok {
		return nil, err
	}

	rec := &model.PlaceRecord{
		Name:      name,
		Category:  category,
		Source:    model.SourceSummary,
		ScrapedAt: time.Now().UTC(),
	}

	if rec.Address, _, err = Resolve(ctx, sess, card, cardAddress); err != nil {
		return nil, err
	}
	if rec.Phone, _, err = Resolve(ctx, sess, card, cardPhone); err != nil {
		return nil, err
	}
	if v, ok, err := Resolve(ctx, sess, card, cardRating); err != nil {
		return nil, err
	} else if ok {
		rec.Rating = floatPtr(v)
	}
	if v, ok, err := Resolve(ctx, sess, card, cardReviewCount); err != nil {
		return nil, err
	} else if ok {
		rec.ReviewCount = intPtr(v)
	}
	if rec.Category == "" {
		if rec.Category, _, err = Resolve(ctx, sess, card, cardCategory); err != nil {
			return nil, err
		}
	}

	link, ok, err := cardHref(ctx, sess, card)
	if err != nil {
		return nil, err
	}
	if ok {
		rec.Coords = ParseCoordinates(link)
	}
	return rec, nil
}

// cardNameOf reads the card's own accessible name first, then its headline elements.
func cardNameOf(ctx context.Context, sess browser.Session, card browser.Node) (string, bool, error) {
	if label, ok, err := sess.Attr(ctx, card, "aria-label"); err != nil {
		if browser.IsFatal(err) {
			return "", false, err
		}
	} else if ok {
		if v, ok := nameRule(label); ok {
			return v, true, nil
		}
	}
	return Resolve(ctx, sess, card, cardName)
}

func cardHref(ctx context.Context, sess browser.Session, card browser.Node) (string, bool, error) {
	if href, ok, err := sess.Attr(ctx, card, "href"); err != nil {
		if browser.IsFatal(err) {
			return "", false, err
		}
	} else if ok {
		if v, ok := placeLinkRule(href); ok {
			return v, true, nil
		}
	}
	return Resolve(ctx, sess, card, cardLink)
}

func floatPtr(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func intPtr(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
