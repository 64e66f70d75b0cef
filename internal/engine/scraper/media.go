package scraper

import (
	"context"
	"time"

	"github.com/phuslu/log"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

// ExtractReviews opens the reviews panel of the current detail view, scrolls it, expands it
// through the "show more" control and parses every review card. A place without a reviews
// panel yields no reviews and no error.
func ExtractReviews(ctx context.Context, sess browser.Session, opts model.Options, logger *log.Logger) ([]model.ReviewRecord, error) {
	trigger, err := FindFirst(ctx, sess, nil, reviewTriggers)
	if err != nil {
		return nil, err
	}
	if trigger == nil {
		logger.Debug().Msg("no reviews trigger")
		return nil, nil
	}
	if err := sess.Click(ctx, trigger); err != nil {
		return nil, err
	}
	if err := settle(ctx, opts.ClickDelay, opts.ClickDelay); err != nil {
		return nil, err
	}

	if err := scrollPanel(ctx, sess, reviewContainers, opts.ReviewScrollRounds, opts.ClickDelay); err != nil {
		return nil, err
	}

	for i := 0; i < opts.ShowMoreLimit; i++ {
		more, err := FindFirst(ctx, sess, nil, showMoreReviews)
		if err != nil {
			return nil, err
		}
		if more == nil {
			break
		}
		if err := sess.Click(ctx, more); err != nil {
			if browser.IsFatal(err) {
				return nil, err
			}
			break
		}
		if err := settle(ctx, opts.ClickDelay, opts.ClickDelay); err != nil {
			return nil, err
		}
	}

	cards, _, err := FindAllFirst(ctx, sess, nil, reviewCards)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reviews := make([]model.ReviewRecord, 0, len(cards))
	seen := make(map[string]struct{}, len(cards))
	for _, card := range cards {
		r, err := parseReview(ctx, sess, card)
		if err != nil {
			return reviews, err
		}
		if r.Text == "" && r.Rating == nil {
			continue
		}
		key := r.Author + "\x00" + r.Date + "\x00" + r.Text
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.ScrapedAt = now
		reviews = append(reviews, r)
	}
	logger.Debug().Int("cards", len(cards)).Int("reviews", len(reviews)).Msg("reviews parsed")
	return reviews, nil
}

func parseReview(ctx context.Context, sess browser.Session, card browser.Node) (model.ReviewRecord, error) {
	var (
		r   model.ReviewRecord
		err error
		ok  bool
	)
	if r.Author, ok, err = Resolve(ctx, sess, card, reviewAuthor); err != nil {
		return r, err
	} else if !ok {
		r.Author = unknownAuthor
	}
	if v, ok, err := Resolve(ctx, sess, card, reviewRating); err != nil {
		return r, err
	} else if ok {
		r.Rating = floatPtr(v)
	}
	if r.Text, _, err = Resolve(ctx, sess, card, reviewText); err != nil {
		return r, err
	}
	if r.Date, _, err = Resolve(ctx, sess, card, reviewDate); err != nil {
		return r, err
	}
	if r.Images, err = ResolveAll(ctx, sess, card, reviewImages); err != nil {
		return r, err
	}
	return r, nil
}

// ExtractMedia opens the photo gallery when a trigger exists, scrolls it and collects photo
// and video URLs from the allow-listed hosts, de-duplicated and in page order.
func ExtractMedia(ctx context.Context, sess browser.Session, opts model.Options, logger *log.Logger) (images, videos []string, err error) {
	trigger, err := FindFirst(ctx, sess, nil, galleryTriggers)
	if err != nil {
		return nil, nil, err
	}
	if trigger != nil {
		if err := sess.Click(ctx, trigger); err != nil {
			if browser.IsFatal(err) {
				return nil, nil, err
			}
			logger.Debug().Err(err).Msg("gallery trigger click failed")
		} else if err := settle(ctx, opts.ClickDelay, opts.ClickDelay); err != nil {
			return nil, nil, err
		}
	}

	if err := scrollPanel(ctx, sess, galleryContainers, opts.ImageScrollRounds, opts.ClickDelay); err != nil {
		return nil, nil, err
	}

	if images, err = ResolveAll(ctx, sess, nil, placeImages); err != nil {
		return nil, nil, err
	}
	if videos, err = ResolveAll(ctx, sess, nil, placeVideos); err != nil {
		return images, nil, err
	}
	logger.Debug().Int("images", len(images)).Int("videos", len(videos)).Msg("media collected")
	return images, videos, nil
}

// scrollPanel scrolls the first matching container, or the viewport, rounds times.
// The container is looked up again every round.
func scrollPanel(ctx context.Context, sess browser.Session, containers []string, rounds int, pause time.Duration) error {
	for i := 0; i < rounds; i++ {
		panel, err := FindFirst(ctx, sess, nil, containers)
		if err != nil {
			return err
		}
		if err := sess.ScrollBy(ctx, panel, scrollStep); err != nil {
			if browser.IsFatal(err) {
				return err
			}
			return nil
		}
		if err := settle(ctx, pause, pause); err != nil {
			return err
		}
	}
	return nil
}
