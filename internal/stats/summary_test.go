package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestSummarizeSingleSample(t *testing.T) {
	s, err := Summarize([]time.Duration{ms(42)})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, ms(42), s.Mean)
	assert.Equal(t, ms(42), s.Median)
	for _, p := range s.Percentiles {
		assert.Equal(t, ms(42), p.Value, "p%v", p.P)
	}
}

func TestSummarizeInterpolatesPercentiles(t *testing.T) {
	// unsorted on purpose
	input := []time.Duration{ms(7), ms(1), ms(10), ms(3), ms(5), ms(2), ms(9), ms(4), ms(8), ms(6)}

	s, err := Summarize(input)
	require.NoError(t, err)

	assert.Equal(t, 10, s.Count)
	assert.Equal(t, ms(5.5), s.Mean)
	assert.Equal(t, ms(5.5), s.Median)
	assert.Equal(t, ms(1), s.Min)
	assert.Equal(t, ms(10), s.Max)

	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, ms(5.5)},
		{90, ms(9.1)},
		{99, ms(9.91)},
		{99.9, ms(9.991)},
		{99.99, ms(9.9991)},
	}
	for _, tt := range tests {
		got, ok := s.At(tt.p)
		require.True(t, ok, "p%v missing", tt.p)
		assert.InDelta(t, float64(tt.want), float64(got), float64(time.Microsecond), "p%v", tt.p)
	}
}

func TestSummarizeOddCountMedian(t *testing.T) {
	s, err := Summarize([]time.Duration{ms(3), ms(1), ms(2)})
	require.NoError(t, err)
	assert.Equal(t, ms(2), s.Median)
	assert.Equal(t, ms(2), s.Mean)
}

func TestSummarizeDoesNotReorderInput(t *testing.T) {
	input := []time.Duration{ms(3), ms(1), ms(2)}
	_, err := Summarize(input)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{ms(3), ms(1), ms(2)}, input)
}
