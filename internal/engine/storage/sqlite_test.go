package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "places.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func place(name string, lat, lng float64) model.PlaceRecord {
	return model.PlaceRecord{
		Name:        name,
		Address:     "Rua Augusta 24, Lisboa",
		Phone:       "+351 21 000 0000",
		Rating:      model.Float(4.5),
		ReviewCount: model.Int(120),
		Category:    "cafes",
		Coords:      &model.Coordinates{Lat: lat, Lng: lng},
		Images:      []string{},
		Videos:      []string{},
		Reviews:     []model.ReviewRecord{},
		Query:       "cafes in Lisbon",
		Source:      model.SourceDetail,
		ScrapedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSavePlaceInsertThenExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := place("Cafe Central", 38.71, -9.13)
	rec.Reviews = []model.ReviewRecord{
		{Author: "Ana", Rating: model.Float(5), Text: "Great.", Date: "2 weeks ago", Images: []string{"https://lh5.googleusercontent.com/r1"}},
		{Author: "Rui", Text: "Busy.", Images: []string{}},
	}
	rec.Images = []string{"https://lh3.googleusercontent.com/p/1"}

	first, err := s.SavePlace(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, model.Inserted, first.Outcome)
	assert.NotZero(t, first.ID)

	again := rec
	again.Phone = "different"
	second, err := s.SavePlace(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, model.Exists, second.Outcome)
	assert.Equal(t, first.ID, second.ID)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Place(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "+351 21 000 0000", got.Phone, "existing row is untouched")
	assert.Equal(t, rec.ScrapedAt, got.ScrapedAt)
	require.Len(t, got.Reviews, 2)
	assert.Equal(t, "Ana", got.Reviews[0].Author)
	assert.Nil(t, got.Reviews[1].Rating)
	assert.Equal(t, []string{"https://lh3.googleusercontent.com/p/1"}, got.Images)
	assert.Equal(t, []string{}, got.Videos)
}

func TestSavePlaceStoresEmptyLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := place("Tasca", 38.72, -9.14)
	rec.Images, rec.Videos = nil, nil
	res, err := s.SavePlace(ctx, rec)
	require.NoError(t, err)

	var images, videos string
	require.NoError(t, s.db.QueryRow("SELECT images, videos FROM place_media WHERE place_id = ?", res.ID).Scan(&images, &videos))
	assert.Equal(t, "[]", images)
	assert.Equal(t, "[]", videos)
}

func TestSavePlaceWithoutCoordinatesUsesAddress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := place("Padaria", 0, 0)
	a.Coords = nil
	b := a
	b.Address = "Rua do Ouro 10, Lisboa"

	for _, rec := range []model.PlaceRecord{a, b} {
		res, err := s.SavePlace(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, model.Inserted, res.Outcome)
	}
	got, err := s.Places(ctx, Filter{Text: "padaria"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Coords)
}

func TestSavePlaceRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := place("Bad Review", 38.7, -9.1)
	rec.Reviews = []model.ReviewRecord{{Author: "x", Rating: model.Float(9)}}
	_, err := s.SavePlace(ctx, rec)
	require.Error(t, err, "review rating outside [0,5] violates the schema")

	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "the place row was rolled back with its reviews")

	res, err := s.SavePlace(ctx, place("Good", 38.7, -9.1))
	require.NoError(t, err, "the writer lock was released")
	assert.Equal(t, model.Inserted, res.Outcome)
}

func TestSavePlaceRejectsEmptyName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SavePlace(context.Background(), place("  ", 1, 1))
	assert.Error(t, err)
}

func TestSavePlaceConcurrentWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]model.SaveResult, 8)
	errs := make([]error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.SavePlace(ctx, place("Same Cafe", 38.7, -9.1))
		}()
	}
	wg.Wait()

	inserted := 0
	for i := range 8 {
		require.NoError(t, errs[i])
		if results[i].Outcome == model.Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)
}

func TestTxExplicit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	rec := place("Manual", 38.7, -9.1)
	id, outcome, err := tx.InsertPlace(rec)
	require.NoError(t, err)
	assert.Equal(t, model.Inserted, outcome)

	ok, err := tx.PlaceExists(model.IdentityKey(rec))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tx.InsertCategories(id, []string{"cafes", "bakery", " "}))
	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.NoError(t, tx.Rollback())

	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []model.PlaceRecord{
		place("Cafe A", 38.70, -9.10),
		place("Bakery B", 38.71, -9.11),
		place("Cafe C", 41.15, -8.61),
	}
	recs[1].Category = "bakery"
	recs[1].Rating = model.Float(3.9)
	recs[2].Address = "Rua das Flores 5, Porto"
	recs[2].Rating = nil
	for _, r := range recs {
		_, err := s.SavePlace(ctx, r)
		require.NoError(t, err)
	}

	cafes, err := s.ByCategory(ctx, "cafe")
	require.NoError(t, err)
	assert.Len(t, cafes, 2)

	porto, err := s.ByLocation(ctx, "Porto")
	require.NoError(t, err)
	require.Len(t, porto, 1)
	assert.Equal(t, "Cafe C", porto[0].Name)

	good, err := s.ByMinRating(ctx, 4)
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.Equal(t, "Cafe A", good[0].Name)

	all, err := s.Places(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Cafe A", all[0].Name, "best rated first")
	assert.Equal(t, "Cafe C", all[2].Name, "unrated last")

	page, err := s.Places(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Bakery B", page[0].Name)

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bakery", "cafes"}, cats)

	_, err = s.Place(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
