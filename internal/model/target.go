package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxResults is used when a target does not set MaxResults.
const DefaultMaxResults = 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ExtractionTarget is the search a run works on. It is not mutated once the run starts.
type ExtractionTarget struct {
	Category   string `validate:"required"`
	Location   string `validate:"required"`
	MaxResults int    `validate:"min=1,max=500"`
}

// NewTarget trims the inputs and fills the MaxResults default.
func NewTarget(category, location string, maxResults int) ExtractionTarget {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return ExtractionTarget{
		Category:   strings.TrimSpace(category),
		Location:   strings.TrimSpace(location),
		MaxResults: maxResults,
	}
}

// Validate checks the target fields.
func (t ExtractionTarget) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	return nil
}

// Query renders the free-text search sent to the map page.
func (t ExtractionTarget) Query() string {
	return t.Category + " in " + t.Location
}

// Options holds the knobs of one extraction pipeline.
type Options struct {
	UseDetailView bool
	FetchReviews  bool
	FetchMedia    bool

	MaxResults         int `validate:"min=0"`
	MaxScrollRounds    int `validate:"min=1"`
	ImageScrollRounds  int `validate:"min=0"`
	ReviewScrollRounds int `validate:"min=0"`
	ShowMoreLimit      int `validate:"min=0"`

	// ElementTimeout bounds every wait for a marker element.
	ElementTimeout time.Duration
	// NavigationTimeout bounds full page navigations.
	NavigationTimeout time.Duration
	// SettleMin/SettleMax bound the random pause after a scroll step.
	SettleMin time.Duration
	SettleMax time.Duration
	// ClickDelay is the pause after clicks and between candidates.
	ClickDelay time.Duration

	// FallbackCategory replaces a missing category. Empty means the stage default.
	FallbackCategory string
}

// DefaultOptions mirrors the pacing the map page tolerates in practice.
func DefaultOptions() Options {
	return Options{
		UseDetailView:      true,
		FetchReviews:       false,
		FetchMedia:         false,
		MaxResults:         DefaultMaxResults,
		MaxScrollRounds:    25,
		ImageScrollRounds:  10,
		ReviewScrollRounds: 15,
		ShowMoreLimit:      20,
		ElementTimeout:     10 * time.Second,
		NavigationTimeout:  60 * time.Second,
		SettleMin:          2 * time.Second,
		SettleMax:          3 * time.Second,
		ClickDelay:         time.Second,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if o.SettleMax < o.SettleMin {
		return fmt.Errorf("invalid options: settle max %s below min %s", o.SettleMax, o.SettleMin)
	}
	return nil
}
