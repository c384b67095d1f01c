package metrics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseTimeUnit(t *testing.T) {
	cases := []struct {
		in   string
		want TimeUnit
	}{
		{in: "nanoseconds", want: Nanoseconds},
		{in: "ns", want: Nanoseconds},
		{in: "microsecond", want: Microseconds},
		{in: "µs", want: Microseconds},
		{in: "us", want: Microseconds},
		{in: "Milliseconds", want: Milliseconds},
		{in: " ms ", want: Milliseconds},
		{in: "SECONDS", want: Seconds},
		{in: "sec", want: Seconds},
		{in: "s", want: Seconds},
		{in: "minute", want: Minutes},
		{in: "min", want: Minutes},
		{in: "hours", want: Hours},
		{in: "h", want: Hours},
		{in: "days", want: Days},
		{in: "d", want: Days},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeUnit(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseTimeUnit_Unknown(t *testing.T) {
	for _, in := range []string{"", "fortnights", "msec", "1s"} {
		_, err := ParseTimeUnit(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrUnknownTimeUnit), in)
		assert.Equal(t, ErrUnknownTimeUnit, errors.Cause(err))
	}
}

func TestTimeUnit_Valid(t *testing.T) {
	for u := range unitNames {
		assert.True(t, u.Valid(), u.String())
	}
	assert.False(t, TimeUnit(0).Valid())
	assert.False(t, TimeUnit(-1).Valid())
	assert.False(t, TimeUnit(time.Second+1).Valid())
}

func TestTimeUnit_ToNanos(t *testing.T) {
	assert.Equal(t, int64(7), Nanoseconds.ToNanos(7))
	assert.Equal(t, int64(7_000), Microseconds.ToNanos(7))
	assert.Equal(t, int64(3*time.Second), Seconds.ToNanos(3))
	assert.Equal(t, int64(-2*time.Hour), Hours.ToNanos(-2))
	assert.Equal(t, int64(36*time.Hour), Days.ToNanos(1)+Hours.ToNanos(12))

	// saturates instead of overflowing
	assert.Equal(t, int64(math.MaxInt64), Days.ToNanos(math.MaxInt64/int64(Days)+1))
	assert.Equal(t, int64(math.MinInt64), Days.ToNanos(-(math.MaxInt64/int64(Days) + 1)))
	assert.Equal(t, int64(math.MaxInt64), Seconds.ToNanos(math.MaxInt64))
}

func TestTimeUnit_FromNanos(t *testing.T) {
	assert.Equal(t, 5.0, Milliseconds.FromNanos(5_000_000))
	assert.Equal(t, 1.5, Seconds.FromNanos(1.5e9))
	assert.Equal(t, 0.5, Minutes.FromNanos(30e9))
	assert.Equal(t, 1000.0, Nanoseconds.FromNanos(1000))
}

func TestTimeUnit_String(t *testing.T) {
	assert.Equal(t, "milliseconds", Milliseconds.String())
	assert.Equal(t, "days", Days.String())
	assert.Equal(t, "3ns", TimeUnit(3).String())
	assert.Equal(t, time.Minute, Minutes.Duration())
}

func TestTimeUnit_Text(t *testing.T) {
	b, err := Microseconds.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "microseconds", string(b))

	_, err = TimeUnit(3).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidTimeUnit)

	var u TimeUnit
	require.NoError(t, u.UnmarshalText([]byte("min")))
	assert.Equal(t, Minutes, u)
	assert.ErrorIs(t, u.UnmarshalText([]byte("eons")), ErrUnknownTimeUnit)
	assert.Equal(t, Minutes, u, "failed unmarshal must not change the unit")
}

func TestTimerConfig_YAML(t *testing.T) {
	var cfg TimerConfig
	err := yaml.Unmarshal([]byte("duration_unit: ms\nrate_unit: minutes\n"), &cfg)
	require.NoError(t, err)
	assert.Equal(t, TimerConfig{DurationUnit: Milliseconds, RateUnit: Minutes}, cfg)
	require.NoError(t, cfg.Validate())

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "duration_unit: milliseconds\nrate_unit: minutes\n", string(out))

	err = yaml.Unmarshal([]byte("duration_unit: weeks\n"), &cfg)
	assert.ErrorIs(t, err, ErrUnknownTimeUnit)
}

func TestTimerConfig_JSON(t *testing.T) {
	var cfg TimerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"duration_unit":"us","rate_unit":"s"}`), &cfg))
	assert.Equal(t, Microseconds, cfg.DurationUnit)
	assert.Equal(t, Seconds, cfg.RateUnit)
}

func TestTimerConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     TimerConfig
		wantErr string
	}{
		{name: "valid", cfg: TimerConfig{DurationUnit: Nanoseconds, RateUnit: Days}},
		{name: "zero duration", cfg: TimerConfig{RateUnit: Seconds}, wantErr: "duration unit 0"},
		{name: "zero rate", cfg: TimerConfig{DurationUnit: Seconds}, wantErr: "rate unit 0"},
		{name: "odd rate", cfg: TimerConfig{DurationUnit: Seconds, RateUnit: 17}, wantErr: "rate unit 17"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTimeUnit)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
