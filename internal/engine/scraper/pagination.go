package scraper

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/phuslu/log"

	"github.com/rendis/placetap/internal/engine/browser"
)

// scrollStep is the distance of one scroll-forward action in pixels.
const scrollStep = 1000

// PageResult reports how a pagination pass ended.
type PageResult struct {
	// Count is the accumulated entry count, never above the requested maximum.
	Count int
	// Rendered is the raw number of entries on the page when the pass stopped.
	Rendered int
	Rounds   int
	Reached  bool
}

// Paginate scrolls the result list until maxResults entries are rendered or maxRounds scroll
// steps were spent. Stagnant rounds do not stop it. Scroll failures end the pass early but
// never fail it; only a fatal session error or ctx cancellation is returned.
func Paginate(ctx context.Context, sess browser.Session, maxResults, maxRounds int, settleMin, settleMax time.Duration, logger *log.Logger) (PageResult, error) {
	var res PageResult
	lastCount := 0

	finish := func() PageResult {
		res.Count = min(lastCount, maxResults)
		return res
	}

	count, err := countCards(ctx, sess)
	if err != nil {
		return finish(), err
	}
	res.Rendered = count
	if count > lastCount {
		lastCount = count
	}
	if lastCount >= maxResults {
		res.Reached = true
		return finish(), nil
	}

	for res.Rounds < maxRounds {
		container, err := FindFirst(ctx, sess, nil, containerSelectors)
		if err != nil {
			return finish(), err
		}
		res.Rounds++
		if err := sess.ScrollBy(ctx, container, scrollStep); err != nil {
			if browser.IsFatal(err) {
				return finish(), err
			}
			logger.Warn().Err(err).Int("round", res.Rounds).Msg("scroll failed, stopping pagination")
			break
		}
		if err := settle(ctx, settleMin, settleMax); err != nil {
			return finish(), err
		}

		count, err := countCards(ctx, sess)
		if err != nil {
			return finish(), err
		}
		res.Rendered = count
		if count > lastCount {
			logger.Debug().Int("round", res.Rounds).Int("count", count).Int("added", count-lastCount).Msg("pagination progress")
			lastCount = count
			if lastCount >= maxResults {
				res.Reached = true
				break
			}
		} else {
			logger.Debug().Int("round", res.Rounds).Int("count", count).Msg("no new results")
		}
	}
	return finish(), nil
}

// settle waits a random duration in [lo, hi] so lazy content can render.
func settle(ctx context.Context, lo, hi time.Duration) error {
	d := lo
	if hi > lo {
		d += rand.N(hi - lo)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
