package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/phuslu/log"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

// returnTimeout bounds the way back to the list when the run was cancelled mid-detail.
const returnTimeout = 10 * time.Second

var errNotReturned = errors.New("could not return to the result list")

// DetailState is a step of the per-candidate detail state machine.
type DetailState int

const (
	StateIdle DetailState = iota
	StateNavigating
	StateLoaded
	StateExtracting
	StateMediaAndReviews
	StateReturning
	StateDone
	StateFailed
)

var detailStateNames = [...]string{"idle", "navigating", "loaded", "extracting", "media_and_reviews", "returning", "done", "failed"}

func (s DetailState) String() string {
	if int(s) < len(detailStateNames) {
		return detailStateNames[s]
	}
	return "unknown"
}

// detailView is an open detail view. release always tries to get back to the list.
type detailView struct {
	sess   browser.Session
	opts   model.Options
	logger *log.Logger
	state  DetailState
}

func (v *detailView) to(s DetailState) {
	v.logger.Trace().Str("from", v.state.String()).Str("to", s.String()).Msg("detail state")
	v.state = s
}

// ExtractDetail clicks card, waits for the detail view and extracts a full record from it.
// Any local failure yields (nil, nil) so the caller can fall back to the card summary;
// only fatal session errors are returned. The list is restored on every exit path.
func ExtractDetail(ctx context.Context, sess browser.Session, card browser.Node, category string, opts model.Options, logger *log.Logger) (rec *model.PlaceRecord, err error) {
	v := &detailView{sess: sess, opts: opts, logger: logger}

	v.to(StateNavigating)
	if err := sess.ScrollIntoView(ctx, card); err != nil {
		return nil, fatalOnly(err)
	}
	if err := settle(ctx, opts.ClickDelay, opts.ClickDelay); err != nil {
		return nil, err
	}
	clickErr := sess.Click(ctx, card)

	// From here the page may have left the list.
	defer func() {
		if rerr := v.release(ctx); rerr != nil && browser.IsFatal(rerr) && err == nil {
			rec, err = nil, rerr
		}
	}()

	if clickErr != nil {
		v.to(StateFailed)
		return nil, fatalOnly(clickErr)
	}
	if err := sess.WaitFor(ctx, detailMarker, opts.ElementTimeout); err != nil {
		v.to(StateFailed)
		logger.Debug().Err(err).Msg("detail view did not load")
		return nil, fatalOnly(err)
	}
	v.to(StateLoaded)

	v.to(StateExtracting)
	rec, err = extractDetailFields(ctx, sess, category)
	if err != nil || rec == nil {
		v.to(StateFailed)
		return nil, fatalOnly(err)
	}

	if opts.FetchReviews || opts.FetchMedia {
		v.to(StateMediaAndReviews)
		if opts.FetchReviews {
			reviews, err := ExtractReviews(ctx, sess, opts, logger)
			if err != nil {
				if browser.IsFatal(err) {
					return nil, err
				}
				logger.Warn().Err(err).Str("place", rec.Name).Msg("reviews extraction failed")
			}
			rec.Reviews = reviews
		}
		if opts.FetchMedia {
			images, videos, err := ExtractMedia(ctx, sess, opts, logger)
			if err != nil {
				if browser.IsFatal(err) {
					return nil, err
				}
				logger.Warn().Err(err).Str("place", rec.Name).Msg("media extraction failed")
			}
			rec.Images, rec.Videos = images, videos
		}
	}
	v.to(StateDone)
	return rec, nil
}

func extractDetailFields(ctx context.Context, sess browser.Session, category string) (*model.PlaceRecord, error) {
	name, ok, err := Resolve(ctx, sess, nil, detailName)
	if err != nil || !ok {
		return nil, err
	}
	rec := &model.PlaceRecord{
		Name:      name,
		Category:  category,
		Source:    model.SourceDetail,
		ScrapedAt: time.Now().UTC(),
	}
	if rec.Address, _, err = Resolve(ctx, sess, nil, detailAddress); err != nil {
		return nil, err
	}
	if rec.Phone, _, err = Resolve(ctx, sess, nil, detailPhone); err != nil {
		return nil, err
	}
	if v, ok, err := Resolve(ctx, sess, nil, detailRating); err != nil {
		return nil, err
	} else if ok {
		rec.Rating = floatPtr(v)
	}
	if v, ok, err := Resolve(ctx, sess, nil, detailReviewCount); err != nil {
		return nil, err
	} else if ok {
		rec.ReviewCount = intPtr(v)
	}
	if rec.Category == "" {
		if rec.Category, _, err = Resolve(ctx, sess, nil, detailCategory); err != nil {
			return nil, err
		}
	}
	loc, err := sess.Location(ctx)
	if err != nil {
		if browser.IsFatal(err) {
			return nil, err
		}
	} else {
		rec.Coords = ParseCoordinates(loc)
	}
	return rec, nil
}

// release tries, in order, Escape, history back and the back control, stopping at the
// first one after which the list is showing again.
func (v *detailView) release(ctx context.Context) error {
	v.to(StateReturning)
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), returnTimeout)
		defer cancel()
	}

	methods := []struct {
		name string
		do   func(context.Context) error
	}{
		{"escape", v.sess.PressEscape},
		{"history_back", v.sess.Back},
		{"back_control", v.clickBack},
	}
	for _, m := range methods {
		back, err := v.onList(ctx)
		if err != nil {
			return err
		}
		if back {
			return nil
		}
		if err := m.do(ctx); err != nil {
			if browser.IsFatal(err) {
				return err
			}
			v.logger.Debug().Err(err).Str("method", m.name).Msg("return attempt failed")
			continue
		}
		if err := settle(ctx, v.opts.ClickDelay, v.opts.ClickDelay); err != nil {
			return err
		}
	}
	back, err := v.onList(ctx)
	if err != nil {
		return err
	}
	if !back {
		v.logger.Warn().Msg("still on detail view after every return method")
		return errNotReturned
	}
	return nil
}

func (v *detailView) clickBack(ctx context.Context) error {
	btn, err := FindFirst(ctx, v.sess, nil, backSelectors)
	if err != nil {
		return err
	}
	if btn == nil {
		return errors.New("no back control")
	}
	return v.sess.Click(ctx, btn)
}

// onList reports whether result cards are rendered and no detail view is open.
func (v *detailView) onList(ctx context.Context) (bool, error) {
	marker, err := v.sess.Find(ctx, nil, detailMarker)
	if err != nil {
		return false, fatalOnly(err)
	}
	if marker != nil {
		return false, nil
	}
	n, err := countCards(ctx, v.sess)
	return n > 0, fatalOnly(err)
}

// fatalOnly drops local failures.
func fatalOnly(err error) error {
	if browser.IsFatal(err) {
		return err
	}
	return nil
}
