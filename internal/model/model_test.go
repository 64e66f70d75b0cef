package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKey(t *testing.T) {
	withCoords := PlaceRecord{Name: "  Padaria Real ", Address: "Rua A 1", Coords: &Coordinates{Lat: 38.7101234, Lng: -9.1401234}}
	assert.Equal(t, "n:padaria real|g:38.710123,-9.140123", IdentityKey(withCoords))

	sameSpot := PlaceRecord{Name: "PADARIA REAL", Address: "Other 2", Coords: &Coordinates{Lat: 38.7101234, Lng: -9.1401234}}
	assert.Equal(t, IdentityKey(withCoords), IdentityKey(sameSpot))

	branch := PlaceRecord{Name: "Padaria Real", Coords: &Coordinates{Lat: 38.72, Lng: -9.14}}
	assert.NotEqual(t, IdentityKey(withCoords), IdentityKey(branch))

	noCoords := PlaceRecord{Name: "Padaria Real", Address: " Rua Augusta 24, LISBOA "}
	assert.Equal(t, "n:padaria real|a:rua augusta 24, lisboa", IdentityKey(noCoords))
}

func TestNewTarget(t *testing.T) {
	tg := NewTarget("  cafes ", " Lisbon ", 0)
	assert.Equal(t, "cafes", tg.Category)
	assert.Equal(t, "Lisbon", tg.Location)
	assert.Equal(t, DefaultMaxResults, tg.MaxResults)
	assert.Equal(t, "cafes in Lisbon", tg.Query())
	require.NoError(t, tg.Validate())

	assert.Equal(t, 7, NewTarget("cafes", "Lisbon", 7).MaxResults)
}

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  ExtractionTarget
		wantErr bool
	}{
		{"valid", ExtractionTarget{Category: "bars", Location: "Porto", MaxResults: 10}, false},
		{"blank category", NewTarget("   ", "Porto", 10), true},
		{"missing location", ExtractionTarget{Category: "bars", MaxResults: 10}, true},
		{"zero results", ExtractionTarget{Category: "bars", Location: "Porto"}, true},
		{"too many results", ExtractionTarget{Category: "bars", Location: "Porto", MaxResults: 501}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.MaxScrollRounds = 0
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.ShowMoreLimit = -1
	assert.Error(t, o.Validate())

	o = DefaultOptions()
	o.SettleMin, o.SettleMax = 3*time.Second, time.Second
	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settle max")
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 38.71, Lng: -9.14}.Valid())
	assert.True(t, Coordinates{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Coordinates{Lat: 90.5, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: -181}.Valid())

	p := Coordinates{Lat: 38.71, Lng: -9.14}.Point()
	assert.Equal(t, -9.14, p[0])
	assert.Equal(t, 38.71, p[1])
}

func TestSaveOutcomeString(t *testing.T) {
	assert.Equal(t, "inserted", Inserted.String())
	assert.Equal(t, "exists", Exists.String())
}
