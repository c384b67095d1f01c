package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUniformHistogram() *Histogram {
	return NewHistogram(NewUniformSample(100, WithSampleSeed(1)))
}

func TestHistogram_Empty(t *testing.T) {
	h := newUniformHistogram()
	assert.Zero(t, h.Count())
	assert.Zero(t, h.Min())
	assert.Zero(t, h.Max())
	assert.Zero(t, h.Mean())
	assert.Zero(t, h.Sum())
	assert.Zero(t, h.Variance())
	assert.Zero(t, h.StdDev())
	assert.Equal(t, []float64{0, 0}, h.Percentiles(0.5, 0.99))
	assert.Empty(t, h.Values())
}

func TestHistogram_SingleValue(t *testing.T) {
	h := newUniformHistogram()
	h.Update(42)
	assert.Equal(t, int64(1), h.Count())
	assert.Equal(t, 42.0, h.Min())
	assert.Equal(t, 42.0, h.Max())
	assert.Equal(t, 42.0, h.Mean())
	assert.Zero(t, h.StdDev())
	assert.Equal(t, []float64{42, 42, 42}, h.Percentiles(0, 0.5, 1))
}

func TestHistogram_Statistics(t *testing.T) {
	h := newUniformHistogram()
	for i := int64(1); i <= 100; i++ {
		h.Update(i)
	}
	assert.Equal(t, int64(100), h.Count())
	assert.Equal(t, 1.0, h.Min())
	assert.Equal(t, 100.0, h.Max())
	assert.Equal(t, 50.5, h.Mean())
	assert.Equal(t, 5050.0, h.Sum())
	assert.InDelta(t, 841.6666666666666, h.Variance(), 1e-9)
	assert.InDelta(t, 29.011491975882016, h.StdDev(), 1e-9)

	got := h.Percentiles(0.5, 0.75, 0.99, 0.999)
	assert.InDelta(t, 50.5, got[0], 1e-9)
	assert.InDelta(t, 75.75, got[1], 1e-9)
	assert.InDelta(t, 99.99, got[2], 1e-9)
	assert.InDelta(t, 100.0, got[3], 1e-9)
}

func TestHistogram_NegativeValues(t *testing.T) {
	h := newUniformHistogram()
	h.Update(-10)
	h.Update(10)
	assert.Equal(t, -10.0, h.Min())
	assert.Equal(t, 10.0, h.Max())
	assert.Zero(t, h.Mean())
}

func TestHistogram_PercentileEdges(t *testing.T) {
	h := newUniformHistogram()
	for _, v := range []int64{50, 10, 40, 20, 30} {
		h.Update(v)
	}
	cases := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "zero", p: 0, want: 10},
		{name: "below first position", p: 0.1, want: 10},
		{name: "interpolated", p: 0.25, want: 15},
		{name: "median", p: 0.5, want: 30},
		{name: "at last position", p: 5.0 / 6, want: 50},
		{name: "one", p: 1, want: 50},
		{name: "below range", p: -1, want: 10},
		{name: "above range", p: 2, want: 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := h.Percentiles(tc.p)
			require.Len(t, got, 1)
			assert.InDelta(t, tc.want, got[0], 1e-9)
		})
	}

	assert.True(t, math.IsNaN(h.Percentiles(math.NaN())[0]))
}

func TestHistogram_Clear(t *testing.T) {
	h := newUniformHistogram()
	h.Update(5)
	h.Update(7)
	h.Clear()
	assert.Zero(t, h.Count())
	assert.Zero(t, h.Max())
	assert.Zero(t, h.Sum())
	assert.Empty(t, h.Values())

	h.Update(3)
	assert.Equal(t, 3.0, h.Min())
	assert.Equal(t, 3.0, h.Max())
}

func TestHistogram_PercentilesReturnFreshSlice(t *testing.T) {
	h := newUniformHistogram()
	h.Update(1)
	a := h.Percentiles(0.5)
	a[0] = 99
	assert.Equal(t, []float64{1}, h.Percentiles(0.5))
}
