package main

import (
	"bytes"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/model"
)

func samplePlaces() []model.StoredPlace {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.StoredPlace{
		{ID: 1, PlaceRecord: model.PlaceRecord{
			Name: "Cafe A", Address: "Rua Augusta 1, Lisboa", Rating: model.Float(4.6), ReviewCount: model.Int(1200),
			Category: "cafes", Coords: &model.Coordinates{Lat: 38.71, Lng: -9.14},
			Images: []string{"https://lh3.googleusercontent.com/p/1"}, Videos: []string{},
			Reviews: []model.ReviewRecord{{Author: "Ana", Rating: model.Float(5), Text: "Great.", Images: []string{}}},
			Query:   "cafes in Lisbon", Source: model.SourceDetail, ScrapedAt: ts,
		}},
		{ID: 2, PlaceRecord: model.PlaceRecord{
			Name: "Cafe, \"B\"", Category: "Unknown", Images: []string{}, Videos: []string{}, Reviews: []model.ReviewRecord{},
			Source: model.SourceSummary, ScrapedAt: ts,
		}},
	}
}

func TestPrintPlaces(t *testing.T) {
	var buf bytes.Buffer
	places := samplePlaces()
	places[0].Reviews = append(places[0].Reviews, model.ReviewRecord{Author: "Rui", Text: strings.Repeat("x", 200)})
	printPlaces(&buf, places, 1)

	out := buf.String()
	assert.Contains(t, out, "#1 Cafe A")
	assert.Contains(t, out, "rating:   4.6 (1200 reviews)")
	assert.Contains(t, out, "> 5★ Ana")
	assert.Contains(t, out, "... 1 more reviews")
	assert.NotContains(t, out, "Rui")
}

func TestScrapeFlagsOverrideOnlyWhenSet(t *testing.T) {
	t.Chdir(t.TempDir())

	var f scrapeFlags
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	f.register(fs)
	f.registerBrowser(fs)
	require.NoError(t, fs.Parse([]string{"-category", "cafes", "-location", "Lisbon", "-max", "7", "-no-detail", "-reviews"}))

	cfg, err := f.load(fs)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pipeline.MaxResults)
	assert.False(t, cfg.Pipeline.UseDetailView)
	assert.True(t, cfg.Pipeline.FetchReviews)
	assert.True(t, cfg.Browser.Headless, "unset -headless keeps the config value")
	assert.False(t, cfg.Geo.Filter)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate(" a \n b ", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}
