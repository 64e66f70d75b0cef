package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateReachesTargetWithinThreeRounds(t *testing.T) {
	// cafes in Lisbon, maxResults=5, two entries lazy-loaded per round.
	f := &fakeMaps{total: 40, perRound: 2}
	s := f.session(t, 0)

	res, err := Paginate(context.Background(), s, 5, 25, 0, time.Millisecond, NopLogger())
	require.NoError(t, err)
	assert.True(t, res.Reached)
	assert.LessOrEqual(t, res.Rounds, 3)
	assert.GreaterOrEqual(t, res.Rendered, 5)
	assert.Equal(t, 5, res.Count)

	cards, err := FindCards(context.Background(), s)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cards), 5)
}

func TestPaginateNeverReportsMoreThanMax(t *testing.T) {
	for _, tc := range []struct{ max, perRound, initial int }{
		{1, 3, 0}, {5, 2, 0}, {7, 4, 0}, {10, 10, 3}, {3, 1, 20},
	} {
		t.Run(fmt.Sprintf("max=%d/per=%d/initial=%d", tc.max, tc.perRound, tc.initial), func(t *testing.T) {
			f := &fakeMaps{total: 50, perRound: tc.perRound}
			s := f.session(t, tc.initial)

			res, err := Paginate(context.Background(), s, tc.max, 25, 0, 0, NopLogger())
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Count, tc.max)
			assert.True(t, res.Reached)
		})
	}
}

func TestPaginateSurvivesStagnation(t *testing.T) {
	// Only 4 results exist: every later round stagnates and the controller keeps going
	// until the round ceiling.
	f := &fakeMaps{total: 4, perRound: 2}
	s := f.session(t, 0)

	res, err := Paginate(context.Background(), s, 20, 6, 0, 0, NopLogger())
	require.NoError(t, err)
	assert.False(t, res.Reached)
	assert.Equal(t, 6, res.Rounds)
	assert.Equal(t, 6, f.scrolls)
	assert.Equal(t, 4, res.Count)
}

func TestPaginateEmptyList(t *testing.T) {
	f := &fakeMaps{total: 0, perRound: 2}
	s := f.session(t, 0)

	res, err := Paginate(context.Background(), s, 5, 3, 0, 0, NopLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 3, res.Rounds)
}

func TestPaginateHonorsCancel(t *testing.T) {
	f := &fakeMaps{total: 100, perRound: 1}
	s := f.session(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Paginate(ctx, s, 50, 25, time.Second, time.Second, NopLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
