package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Coordinates is a WGS84 position. A record carries either both halves or none.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the pair lies inside the WGS84 ranges.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Point returns the position as an orb.Point ([lng, lat]).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Source identifies which extractor produced a record.
type Source string

const (
	SourceDetail  Source = "detail"
	SourceSummary Source = "summary"
)

// PlaceRecord is a business extracted from the map results list.
type PlaceRecord struct {
	Name        string         `json:"name" yaml:"name"`
	Address     string         `json:"address" yaml:"address"`
	Phone       string         `json:"phone" yaml:"phone"`
	Rating      *float64       `json:"rating,omitempty" yaml:"rating,omitempty"`
	ReviewCount *int           `json:"review_count,omitempty" yaml:"review_count,omitempty"`
	Category    string         `json:"category" yaml:"category"`
	Coords      *Coordinates   `json:"coords,omitempty" yaml:"coords,omitempty"`
	Images      []string       `json:"images" yaml:"images"`
	Videos      []string       `json:"videos" yaml:"videos"`
	Reviews     []ReviewRecord `json:"reviews" yaml:"reviews"`
	Query       string         `json:"query" yaml:"query"`
	Source      Source         `json:"source" yaml:"source"`
	ScrapedAt   time.Time      `json:"scraped_at" yaml:"scraped_at"`
}

// ReviewRecord is a single user review attached to a place.
type ReviewRecord struct {
	Author    string    `json:"author" yaml:"author"`
	Rating    *float64  `json:"rating,omitempty" yaml:"rating,omitempty"`
	Text      string    `json:"text" yaml:"text"`
	Date      string    `json:"date" yaml:"date"`
	Images    []string  `json:"images" yaml:"images"`
	ScrapedAt time.Time `json:"scraped_at" yaml:"scraped_at"`
}

// StoredPlace is a persisted record with its generated id.
type StoredPlace struct {
	ID int64 `json:"id" yaml:"id"`
	PlaceRecord `yaml:",inline"`
}

// IdentityKey returns the de-duplication key of a record: the lower-cased name
// paired with its coordinates when known, else with its address.
func IdentityKey(r PlaceRecord) string {
	name := strings.ToLower(strings.TrimSpace(r.Name))
	if r.Coords != nil {
		return fmt.Sprintf("n:%s|g:%.6f,%.6f", name, r.Coords.Lat, r.Coords.Lng)
	}
	return "n:" + name + "|a:" + strings.ToLower(strings.TrimSpace(r.Address))
}

// SaveOutcome reports what the persistence gate did with a record.
type SaveOutcome int

const (
	Inserted SaveOutcome = iota
	Exists
)

func (o SaveOutcome) String() string {
	if o == Exists {
		return "exists"
	}
	return "inserted"
}

// SaveResult is returned by the persistence gate for every record handed to it.
type SaveResult struct {
	ID      int64
	Outcome SaveOutcome
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
