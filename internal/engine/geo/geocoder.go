package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

const (
	nominatimURL     = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent = "placetap/0.1 (business listing extractor)"
)

// ErrNotFound is returned when the geocoder has no match for a location.
var ErrNotFound = errors.New("location not found")

// Area is a geocoded location: its representative point and bounding box.
type Area struct {
	Name   string
	Center orb.Point
	Bound  orb.Bound
}

// Polygon returns the bounding box as a geo filter.
func (a Area) Polygon() orb.MultiPolygon {
	return orb.MultiPolygon{a.Bound.ToPolygon()}
}

type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"` // [minLat, maxLat, minLng, maxLng]
	DisplayName string   `json:"display_name"`
}

// Geocoder resolves free-text locations through OSM Nominatim.
type Geocoder struct {
	http      *http.Client
	endpoint  string
	userAgent string
	lang      string
}

// GeocoderOption customizes a Geocoder.
type GeocoderOption func(*Geocoder)

// WithEndpoint points the geocoder at a Nominatim-compatible search URL.
func WithEndpoint(u string) GeocoderOption {
	return func(g *Geocoder) {
		if u != "" {
			g.endpoint = strings.TrimRight(u, "?&")
		}
	}
}

// WithUserAgent sets the identifying User-Agent Nominatim requires.
func WithUserAgent(ua string) GeocoderOption {
	return func(g *Geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithLanguage sets Accept-Language for display names.
func WithLanguage(lang string) GeocoderOption {
	return func(g *Geocoder) { g.lang = lang }
}

func NewGeocoder(proxyURL string, opts ...GeocoderOption) *Geocoder {
	g := &Geocoder{
		http:      &http.Client{Transport: newTransport(proxyURL), Timeout: 10 * time.Second},
		endpoint:  nominatimURL,
		userAgent: defaultUserAgent,
		lang:      "en",
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Geocode returns the best match for location.
func (g *Geocoder) Geocode(ctx context.Context, location string) (Area, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Area{}, errors.New("empty location")
	}

	u := g.endpoint + "?" + url.Values{
		"q":      {location},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Area{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	if g.lang != "" {
		req.Header.Set("Accept-Language", g.lang)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return Area{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Area{}, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Area{}, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return Area{}, fmt.Errorf("%w: %q", ErrNotFound, location)
	}
	return results[0].area()
}

func (r nominatimResult) area() (Area, error) {
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lng, errLng := strconv.ParseFloat(r.Lon, 64)
	if err := errors.Join(errLat, errLng); err != nil {
		return Area{}, fmt.Errorf("invalid center from geocoder: %w", err)
	}
	center := orb.Point{lng, lat}

	bb := r.BoundingBox
	if len(bb) < 4 {
		return Area{Name: r.DisplayName, Center: center, Bound: center.Bound()}, nil
	}
	vals := make([]float64, 4)
	for i := range vals {
		v, err := strconv.ParseFloat(bb[i], 64)
		if err != nil {
			return Area{}, fmt.Errorf("invalid bounding box from geocoder: %w", err)
		}
		vals[i] = v
	}
	return Area{
		Name:   r.DisplayName,
		Center: center,
		Bound:  orb.Bound{Min: orb.Point{vals[2], vals[0]}, Max: orb.Point{vals[3], vals[1]}},
	}, nil
}
