package scraper

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

func firstCard(t *testing.T, s browser.Session) browser.Node {
	t.Helper()
	cards, err := FindCards(context.Background(), s)
	require.NoError(t, err)
	require.NotEmpty(t, cards)
	return cards[0]
}

func TestExtractDetail(t *testing.T) {
	ctx := context.Background()
	f := &fakeMaps{total: 3, perRound: 1}
	s := f.session(t, 3)

	rec, err := ExtractDetail(ctx, s, firstCard(t, s), "cafes", testOptions(), NopLogger())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "Cafe 1", rec.Name)
	assert.Equal(t, "Rua Augusta 1, Lisboa", rec.Address)
	assert.Equal(t, "+351 21 000 0001", rec.Phone)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 4.1, *rec.Rating, 1e-9)
	require.NotNil(t, rec.ReviewCount)
	assert.Equal(t, 1201, *rec.ReviewCount)
	assert.Equal(t, "cafes", rec.Category)
	assert.Equal(t, model.SourceDetail, rec.Source)
	require.NotNil(t, rec.Coords)
	assert.InDelta(t, 38.7001, rec.Coords.Lat, 1e-9)
	assert.InDelta(t, -9.1301, rec.Coords.Lng, 1e-9)

	loc, err := s.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, listURL, loc, "back on the list after extraction")
}

func TestExtractDetailMarkerTimeout(t *testing.T) {
	ctx := context.Background()
	f := &fakeMaps{total: 2, perRound: 1, noDetail: map[int]bool{1: true}}
	s := f.session(t, 2)

	rec, err := ExtractDetail(ctx, s, firstCard(t, s), "cafes", testOptions(), NopLogger())
	require.NoError(t, err)
	assert.Nil(t, rec)

	// The list is still navigable and the summary fallback works on it.
	card := firstCard(t, s)
	sum, err := ExtractSummary(ctx, s, card, "cafes")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "Cafe 1", sum.Name)
	assert.Equal(t, model.SourceSummary, sum.Source)
}

func TestExtractDetailMissingNameStillReturns(t *testing.T) {
	ctx := context.Background()
	s, err := browser.NewDocumentSession(`<div role="feed">`+cardHTML(1)+`</div>`, listURL, browser.Hooks{
		OnClick: func(s *browser.DocumentSession, _ *goquery.Selection) error {
			// Marker present but empty: no usable name.
			return s.Push(`<h1 class="DUwDvf"> </h1>`, detailURL(1))
		},
	})
	require.NoError(t, err)

	rec, err := ExtractDetail(ctx, s, firstCard(t, s), "", testOptions(), NopLogger())
	require.NoError(t, err)
	assert.Nil(t, rec)

	loc, err := s.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, listURL, loc)
}

func TestExtractDetailReturnsWithEscape(t *testing.T) {
	ctx := context.Background()
	escapes := 0
	s, err := browser.NewDocumentSession(`<div role="feed">`+cardHTML(1)+`</div>`, listURL, browser.Hooks{
		OnClick: func(s *browser.DocumentSession, _ *goquery.Selection) error {
			s.Document().Find("body").AppendHtml(`<div class="pane"><h1 class="DUwDvf lfPIob">Cafe 1</h1></div>`)
			return nil
		},
		OnEscape: func(s *browser.DocumentSession) error {
			escapes++
			s.Document().Find("div.pane").Remove()
			return nil
		},
	})
	require.NoError(t, err)

	rec, err := ExtractDetail(ctx, s, firstCard(t, s), "", testOptions(), NopLogger())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, escapes)
	assert.Equal(t, "general", Normalize(*rec, "").Category)

	// History was not touched: escape alone closed the pane.
	assert.Error(t, s.Back(ctx))
}

func TestExtractDetailNameWithStars(t *testing.T) {
	ctx := context.Background()
	card := `<div role="article" aria-label="All Stars Sports Bar">` +
		`<a href="https://www.google.com/maps/place/All+Stars/data=!3d38.71!4d-9.14"></a>` +
		`<div class="fontHeadlineSmall">All Stars Sports Bar</div></div>`
	s, err := browser.NewDocumentSession(`<div role="feed">`+card+`</div>`, listURL, browser.Hooks{
		OnClick: func(s *browser.DocumentSession, _ *goquery.Selection) error {
			return s.Push(`<h1 class="DUwDvf lfPIob">All Stars Sports Bar</h1>`+
				`<div aria-label="Address: Rua Nova 3, Lisboa"></div>`,
				"https://www.google.com/maps/place/All+Stars/@38.71,-9.14,17z")
		},
	})
	require.NoError(t, err)

	rec, err := ExtractDetail(ctx, s, firstCard(t, s), "bars", testOptions(), NopLogger())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "All Stars Sports Bar", rec.Name)
	assert.Equal(t, "Rua Nova 3, Lisboa", rec.Address)

	sum, err := ExtractSummary(ctx, s, firstCard(t, s), "bars")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "All Stars Sports Bar", sum.Name)
}

func TestExtractDetailFatal(t *testing.T) {
	ctx := context.Background()
	f := &fakeMaps{total: 1, perRound: 1}
	s := f.session(t, 1)
	card := firstCard(t, s)
	require.NoError(t, s.Close())

	rec, err := ExtractDetail(ctx, s, card, "", testOptions(), NopLogger())
	assert.Nil(t, rec)
	assert.True(t, browser.IsFatal(err))
}

func TestDetailStateString(t *testing.T) {
	assert.Equal(t, "returning", StateReturning.String())
	assert.Equal(t, "unknown", DetailState(99).String())
}
