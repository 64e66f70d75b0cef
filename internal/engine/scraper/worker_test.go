package scraper

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

func TestRunDetailFirst(t *testing.T) {
	f := &fakeMaps{total: 12, perRound: 2}
	s := f.session(t, 0)
	sink := newMemorySink()

	var seen []model.PlaceRecord
	target := model.NewTarget("cafes", "Lisbon", 5)
	stats, err := Run(context.Background(), s, target, testOptions(), sink, NopLogger(), &RunOptions{
		SuppressStderr: true,
		OnPlace:        func(r model.PlaceRecord, _ model.SaveResult) { seen = append(seen, r) },
	})
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, stats.Phase())
	assert.NotEmpty(t, stats.RunID)
	assert.EqualValues(t, 5, stats.Processed.Load())
	assert.EqualValues(t, 5, stats.Detail.Load())
	assert.EqualValues(t, 0, stats.Summary.Load())
	assert.EqualValues(t, 5, stats.Stored.Load())
	require.Len(t, sink.records, 5)
	require.Len(t, seen, 5)

	for i, r := range sink.records {
		assert.Equal(t, model.SourceDetail, r.Source)
		assert.Equal(t, "cafes in Lisbon", r.Query)
		assert.Equal(t, "cafes", r.Category)
		require.NotNil(t, r.Coords)
		assert.NotNil(t, r.Reviews)
		assert.NotNil(t, r.Images)
		assert.Equal(t, fixtureName(i+1), r.Name, "candidates processed in rendered order")
	}
}

func fixtureName(i int) string {
	return "Cafe " + strconv.Itoa(i)
}

func TestRunFallsBackToSummary(t *testing.T) {
	f := &fakeMaps{total: 3, perRound: 1, noDetail: map[int]bool{2: true}}
	s := f.session(t, 3)
	sink := newMemorySink()

	stats, err := Run(context.Background(), s, model.NewTarget("cafes", "Lisbon", 3), testOptions(), sink, NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true})
	require.NoError(t, err, "a detail timeout does not abort the run")

	assert.EqualValues(t, 2, stats.Detail.Load())
	assert.EqualValues(t, 1, stats.Summary.Load())
	require.Len(t, sink.records, 3)

	fallback := sink.records[1]
	assert.Equal(t, "Cafe 2", fallback.Name)
	assert.Equal(t, model.SourceSummary, fallback.Source)
	assert.Equal(t, "Rua Augusta 2, Lisboa", fallback.Address)
	require.NotNil(t, fallback.Rating)
	assert.InDelta(t, 4.2, *fallback.Rating, 1e-9)
	require.NotNil(t, fallback.ReviewCount)
	assert.Equal(t, 1202, *fallback.ReviewCount)
	require.NotNil(t, fallback.Coords, "summary reads coordinates from the card link")
	assert.Equal(t, model.IdentityKey(fallback), model.IdentityKey(model.PlaceRecord{
		Name: "Cafe 2", Coords: &model.Coordinates{Lat: 38.7002, Lng: -9.1302},
	}))
}

func TestRunSummaryOnly(t *testing.T) {
	f := &fakeMaps{total: 4, perRound: 1}
	s := f.session(t, 4)
	sink := newMemorySink()

	opts := testOptions()
	opts.UseDetailView = false
	stats, err := Run(context.Background(), s, model.NewTarget("cafes", "Lisbon", 10), opts, sink, NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true})
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Summary.Load())
	assert.Zero(t, f.clicks)
	assert.Len(t, sink.records, 4)
}

func TestRunSecondPassReportsExisting(t *testing.T) {
	sink := newMemorySink()
	target := model.NewTarget("cafes", "Lisbon", 2)

	for pass := range 2 {
		f := &fakeMaps{total: 2, perRound: 1}
		s := f.session(t, 2)
		stats, err := Run(context.Background(), s, target, testOptions(), sink, NopLogger(),
			&RunOptions{SuppressStderr: true, SkipSearch: true})
		require.NoError(t, err)
		if pass == 0 {
			assert.EqualValues(t, 2, stats.Stored.Load())
		} else {
			assert.EqualValues(t, 0, stats.Stored.Load())
			assert.EqualValues(t, 2, stats.Existing.Load())
		}
	}
	assert.Len(t, sink.records, 2)
}

func TestRunPersistenceFailureIsPerRecord(t *testing.T) {
	f := &fakeMaps{total: 3, perRound: 1}
	s := f.session(t, 3)
	sink := newMemorySink()
	sink.fail["Cafe 1"] = errors.New("disk full")

	stats, err := Run(context.Background(), s, model.NewTarget("cafes", "Lisbon", 3), testOptions(), sink, NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Errors.Load())
	assert.Len(t, sink.records, 2)
}

func TestRunEmptyResults(t *testing.T) {
	f := &fakeMaps{total: 0, perRound: 1}
	s := f.session(t, 0)

	opts := testOptions()
	opts.MaxScrollRounds = 2
	stats, err := Run(context.Background(), s, model.NewTarget("cafes", "Nowhere", 5), opts, newMemorySink(), NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true})
	require.NoError(t, err, "no candidates is an empty result, not an error")
	assert.Zero(t, stats.Candidates.Load())
	assert.Equal(t, PhaseDone, stats.Phase())
}

func TestRunFilters(t *testing.T) {
	f := &fakeMaps{total: 4, perRound: 1}
	s := f.session(t, 4)
	sink := newMemorySink()

	// Only Cafe 1 and Cafe 2 lie inside this box.
	box := orb.Bound{Min: orb.Point{-9.13025, 38.70005}, Max: orb.Point{-9.13005, 38.70025}}
	stats, err := Run(context.Background(), s, model.NewTarget("cafes", "Lisbon", 4), testOptions(), sink, NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true, GeoFilter: orb.MultiPolygon{box.ToPolygon()}, MinRating: 4.2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Filtered.Load())
	require.Len(t, sink.records, 1)
	assert.Equal(t, "Cafe 2", sink.records[0].Name)
}

func TestRunAbortsOnFatal(t *testing.T) {
	f := &fakeMaps{total: 3, perRound: 1}
	s := f.session(t, 3)
	require.NoError(t, s.Close())

	_, err := Run(context.Background(), s, model.NewTarget("cafes", "Lisbon", 3), testOptions(), newMemorySink(), NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true})
	assert.Error(t, err)
}

func TestRunRejectsInvalidTarget(t *testing.T) {
	f := &fakeMaps{total: 1, perRound: 1}
	s := f.session(t, 1)

	_, err := Run(context.Background(), s, model.ExtractionTarget{Location: "Lisbon", MaxResults: 5}, testOptions(), newMemorySink(), nil, nil)
	assert.Error(t, err)
}

func TestRunKeepsBranchesSharingAName(t *testing.T) {
	branch := func(lat string) string {
		return `<div role="article" aria-label="Padaria Real">` +
			`<a href="https://www.google.com/maps/place/Padaria+Real/data=!3d` + lat + `!4d-9.14"></a>` +
			`<div class="fontHeadlineSmall">Padaria Real</div></div>`
	}
	html := `<html><body><div role="main"><div role="feed">` +
		branch("38.71") + branch("38.72") + branch("38.71") +
		`</div></div></body></html>`
	s, err := browser.NewDocumentSession(html, listURL, browser.Hooks{})
	require.NoError(t, err)

	opts := testOptions()
	opts.UseDetailView = false
	sink := newMemorySink()
	stats, err := Run(context.Background(), s, model.NewTarget("bakery", "Lisbon", 3), opts, sink, NopLogger(),
		&RunOptions{SuppressStderr: true, SkipSearch: true})
	require.NoError(t, err)

	require.Len(t, sink.records, 2, "same name at another location is another place")
	assert.InDelta(t, 38.71, sink.records[0].Coords.Lat, 1e-9)
	assert.InDelta(t, 38.72, sink.records[1].Coords.Lat, 1e-9)
	assert.EqualValues(t, 1, stats.Skipped.Load(), "exact repeat skipped by identity key")
}
