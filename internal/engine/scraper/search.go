package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/phuslu/log"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

const (
	mapsBaseURL = "https://www.google.com/maps"
	// resultsTimeout bounds the wait for the results panel; a miss is tolerated.
	resultsTimeout = 15 * time.Second
	consentTimeout = 5 * time.Second
	defaultZoom    = 14
)

// SearchURL builds the map search URL for target, centred on center when known.
func SearchURL(target model.ExtractionTarget, center *orb.Point, zoom int, lang string) string {
	var b strings.Builder
	b.WriteString(mapsBaseURL)
	b.WriteString("/search/")
	b.WriteString(url.PathEscape(target.Query()))
	if center != nil {
		if zoom <= 0 {
			zoom = defaultZoom
		}
		fmt.Fprintf(&b, "/@%.7f,%.7f,%dz", center.Lat(), center.Lon(), zoom)
	}
	if lang != "" {
		b.WriteString("?hl=")
		b.WriteString(url.QueryEscape(lang))
	}
	return b.String()
}

// OpenSearch loads the search page, dismisses the consent dialog and waits for the results
// panel. A missing panel is logged, not returned: pagination will find what is there.
func OpenSearch(ctx context.Context, sess browser.Session, searchURL string, opts model.Options, logger *log.Logger) error {
	if err := sess.Navigate(ctx, searchURL); err != nil {
		return fmt.Errorf("opening search: %w", err)
	}
	if err := acceptConsent(ctx, sess, min(consentTimeout, opts.ElementTimeout)); err != nil {
		return err
	}
	err := sess.WaitFor(ctx, strings.Join(containerSelectors, ", "), min(resultsTimeout, opts.NavigationTimeout))
	if err == nil {
		logger.Debug().Str("url", searchURL).Msg("results panel loaded")
		return nil
	}
	if browser.IsFatal(err) {
		return err
	}
	logger.Warn().Err(err).Str("url", searchURL).Msg("results panel timeout, continuing")
	return nil
}

func acceptConsent(ctx context.Context, sess browser.Session, timeout time.Duration) error {
	err := sess.WaitFor(ctx, cookieConsentSelectors[0], timeout)
	if err != nil && browser.IsFatal(err) {
		return err
	}
	btn, err := FindFirst(ctx, sess, nil, cookieConsentSelectors)
	if err != nil || btn == nil {
		return err
	}
	return fatalOnly(sess.Click(ctx, btn))
}
