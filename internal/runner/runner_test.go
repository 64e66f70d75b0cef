package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/model"
)

func listing(coords ...[2]float64) string {
	var b strings.Builder
	b.WriteString(`<html><body><div role="main"><div role="feed">`)
	for i, c := range coords {
		fmt.Fprintf(&b, `<div role="article" class="Nv2PK" aria-label="Bakery %[1]d">`+
			`<a class="hfpxzc" href="https://www.google.com/maps/place/Bakery+%[1]d/data=!3d%[2]f!4d%[3]f"></a>`+
			`<div class="qBF1Pd fontHeadlineSmall">Bakery %[1]d</div>`+
			`<span class="MW4etd">4.5</span><span class="UY7F9">(87)</span>`+
			`</div>`, i+1, c[0], c[1])
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Pipeline.UseDetailView = false
	cfg.Pipeline.MaxScrollRounds = 1
	cfg.Timeouts.Element = 20 * time.Millisecond
	cfg.Timeouts.Navigation = 20 * time.Millisecond
	cfg.Timeouts.SettleMin = 0
	cfg.Timeouts.SettleMax = 0
	cfg.Timeouts.Click = 0
	return cfg
}

func staticSession(html string) func(context.Context) (browser.Session, error) {
	return func(context.Context) (browser.Session, error) {
		return browser.NewDocumentSession(html, "https://www.google.com/maps/search/bakery", browser.Hooks{})
	}
}

type fixedGeocoder struct {
	area geo.Area
	err  error
}

func (g fixedGeocoder) Geocode(context.Context, string) (geo.Area, error) { return g.area, g.err }

func TestScrapePersists(t *testing.T) {
	db := filepath.Join(t.TempDir(), "run.db")
	html := listing([2]float64{38.71, -9.14}, [2]float64{38.72, -9.15})

	res, err := Scrape(context.Background(), Request{
		Target:      model.NewTarget("bakery", "Lisbon", 10),
		Config:      testConfig(),
		DBPath:      db,
		Quiet:       true,
		OpenSession: staticSession(html),
		SkipSearch:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.EqualValues(t, 2, res.Stats.Summary.Load())
	assert.Nil(t, res.Area)

	store, err := storage.NewStore(db)
	require.NoError(t, err)
	defer store.Close()
	places, err := store.ByCategory(context.Background(), "bakery")
	require.NoError(t, err)
	assert.Len(t, places, 2)
}

func TestScrapeGeoFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Geo.Filter = true
	area := geo.Area{
		Name:   "Lisboa",
		Center: orb.Point{-9.14, 38.71},
		Bound:  orb.Bound{Min: orb.Point{-9.2, 38.69}, Max: orb.Point{-9.1, 38.8}},
	}
	html := listing([2]float64{38.71, -9.14}, [2]float64{41.15, -8.61})

	res, err := Scrape(context.Background(), Request{
		Target:      model.NewTarget("bakery", "Lisbon", 10),
		Config:      cfg,
		DBPath:      filepath.Join(t.TempDir(), "geo.db"),
		Quiet:       true,
		OpenSession: staticSession(html),
		Geocoder:    fixedGeocoder{area: area},
		SkipSearch:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Area)
	assert.Equal(t, 1, res.Total)
	assert.EqualValues(t, 1, res.Stats.Filtered.Load())
}

func TestScrapeGeocodeFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Geo.Filter = true
	_, err := Scrape(context.Background(), Request{
		Target:      model.NewTarget("bakery", "Atlantis", 10),
		Config:      cfg,
		DBPath:      filepath.Join(t.TempDir(), "x.db"),
		OpenSession: staticSession(listing()),
		Geocoder:    fixedGeocoder{err: geo.ErrNotFound},
	})
	assert.ErrorIs(t, err, geo.ErrNotFound)
}

func TestScrapeSessionFailure(t *testing.T) {
	boom := errors.New("no chrome")
	_, err := Scrape(context.Background(), Request{
		Target: model.NewTarget("bakery", "Lisbon", 10),
		Config: testConfig(),
		DBPath: filepath.Join(t.TempDir(), "x.db"),
		OpenSession: func(context.Context) (browser.Session, error) {
			return nil, boom
		},
	})
	assert.ErrorIs(t, err, boom)
}
