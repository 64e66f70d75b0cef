package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/model"
)

func TestGeocode(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"38.7077507","lon":"-9.1365919",
			"boundingbox":["38.6913994","38.7967584","-9.2298356","-9.0863328"],
			"display_name":"Lisboa, Portugal"}]`))
	}))
	defer srv.Close()

	g := NewGeocoder("", WithEndpoint(srv.URL+"/search?"), WithUserAgent("test/1.0"))
	area, err := g.Geocode(context.Background(), " Lisbon ")
	require.NoError(t, err)

	assert.Equal(t, "Lisbon", gotQuery)
	assert.Equal(t, "test/1.0", gotUA)
	assert.Equal(t, "Lisboa, Portugal", area.Name)
	assert.InDelta(t, -9.1365919, area.Center.Lon(), 1e-9)
	assert.InDelta(t, 38.7077507, area.Center.Lat(), 1e-9)
	assert.InDelta(t, -9.2298356, area.Bound.Min.Lon(), 1e-9)
	assert.InDelta(t, 38.7967584, area.Bound.Max.Lat(), 1e-9)
	assert.True(t, WithinArea(area.Polygon(), &model.Coordinates{Lat: 38.71, Lng: -9.14}))
	assert.False(t, WithinArea(area.Polygon(), &model.Coordinates{Lat: 41.15, Lng: -8.61}))
}

func TestGeocodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "no results", status: http.StatusOK, body: `[]`, wantErr: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``},
		{name: "bad json", status: http.StatusOK, body: `{`},
		{name: "bad center", status: http.StatusOK, body: `[{"lat":"x","lon":"1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGeocoder("", WithEndpoint(srv.URL)).Geocode(context.Background(), "Atlantis")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}

	_, err := NewGeocoder("").Geocode(context.Background(), "  ")
	assert.Error(t, err)
}

func TestGeocodeWithoutBoundingBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"lat":"1.5","lon":"2.5"}]`))
	}))
	defer srv.Close()

	area, err := NewGeocoder("", WithEndpoint(srv.URL)).Geocode(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{2.5, 1.5}, area.Center)
	assert.Equal(t, area.Center, area.Bound.Min)
}

func TestDistanceKm(t *testing.T) {
	lisbon := orb.Point{-9.1393, 38.7223}
	porto := orb.Point{-8.6291, 41.1579}
	assert.InDelta(t, 274, DistanceKm(lisbon, porto), 3)
	assert.Zero(t, DistanceKm(lisbon, lisbon))
}

func TestFilterByRadius(t *testing.T) {
	center := orb.Point{-9.1393, 38.7223}
	places := []model.StoredPlace{
		{ID: 1, PlaceRecord: model.PlaceRecord{Coords: &model.Coordinates{Lat: 38.7250, Lng: -9.1500}}},
		{ID: 2, PlaceRecord: model.PlaceRecord{Coords: &model.Coordinates{Lat: 41.1579, Lng: -8.6291}}},
		{ID: 3},
	}
	got := FilterByRadius(places, center, 5)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].ID)
}

func TestCircleContainsCenter(t *testing.T) {
	center := orb.Point{-9.1393, 38.7223}
	area := orb.MultiPolygon{Circle(center, 2, 32)}
	assert.True(t, WithinArea(area, &model.Coordinates{Lat: 38.7223, Lng: -9.1393}))
	assert.True(t, WithinArea(area, &model.Coordinates{Lat: 38.73, Lng: -9.14}))
	assert.False(t, WithinArea(area, &model.Coordinates{Lat: 38.80, Lng: -9.14}))
	assert.True(t, WithinArea(area, nil), "records without coordinates pass")
	assert.True(t, WithinArea(nil, &model.Coordinates{Lat: 1, Lng: 1}), "no area means no filter")
}

func TestZoomFor(t *testing.T) {
	city := orb.Bound{Min: orb.Point{-9.23, 38.69}, Max: orb.Point{-9.09, 38.80}}
	assert.Equal(t, 13, ZoomFor(city))
	assert.Equal(t, 10, ZoomFor(orb.Bound{Min: orb.Point{-10, 36}, Max: orb.Point{-6, 42}}))
	assert.Equal(t, 15, ZoomFor(orb.Point{1, 1}.Bound()))
}
