package metrics

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimeUnit is the scale in which durations or rates are reported.
// Its value is the number of nanoseconds in one unit.
type TimeUnit int64

const (
	Nanoseconds  TimeUnit = TimeUnit(time.Nanosecond)
	Microseconds TimeUnit = TimeUnit(time.Microsecond)
	Milliseconds TimeUnit = TimeUnit(time.Millisecond)
	Seconds      TimeUnit = TimeUnit(time.Second)
	Minutes      TimeUnit = TimeUnit(time.Minute)
	Hours        TimeUnit = TimeUnit(time.Hour)
	Days         TimeUnit = TimeUnit(24 * time.Hour)
)

var (
	// ErrUnknownTimeUnit is returned when a unit name cannot be parsed.
	ErrUnknownTimeUnit = errors.New("unknown time unit")
	// ErrInvalidTimeUnit is returned when a unit is not one of the supported scales.
	ErrInvalidTimeUnit = errors.New("invalid time unit")
)

var unitNames = map[TimeUnit]string{
	Nanoseconds:  "nanoseconds",
	Microseconds: "microseconds",
	Milliseconds: "milliseconds",
	Seconds:      "seconds",
	Minutes:      "minutes",
	Hours:        "hours",
	Days:         "days",
}

var unitAliases = map[string]TimeUnit{
	"ns":  Nanoseconds,
	"us":  Microseconds,
	"µs":  Microseconds,
	"ms":  Milliseconds,
	"s":   Seconds,
	"sec": Seconds,
	"m":   Minutes,
	"min": Minutes,
	"h":   Hours,
	"d":   Days,
}

// Valid reports whether u is one of the predefined units.
func (u TimeUnit) Valid() bool {
	_, ok := unitNames[u]
	return ok
}

// Nanos returns the number of nanoseconds in one u.
func (u TimeUnit) Nanos() int64 { return int64(u) }

// ToNanos converts d, expressed in u, to nanoseconds.
// Results that would overflow saturate at math.MaxInt64 or math.MinInt64.
// Units of one nanosecond or less, valid or not, leave d unchanged.
func (u TimeUnit) ToNanos(d int64) int64 {
	n := int64(u)
	if n <= 1 {
		return d
	}
	limit := math.MaxInt64 / n
	switch {
	case d > limit:
		return math.MaxInt64
	case d < -limit:
		return math.MinInt64
	}
	return d * n
}

// FromNanos converts ns nanoseconds to a fractional amount of u.
func (u TimeUnit) FromNanos(ns float64) float64 {
	return ns / float64(u)
}

// Duration returns one u as a time.Duration.
func (u TimeUnit) Duration() time.Duration { return time.Duration(u) }

func (u TimeUnit) String() string {
	if s, ok := unitNames[u]; ok {
		return s
	}
	return time.Duration(u).String()
}

// ParseTimeUnit parses a unit name such as "milliseconds", "ms" or "Seconds".
func ParseTimeUnit(s string) (TimeUnit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if u, ok := unitAliases[name]; ok {
		return u, nil
	}
	for u, full := range unitNames {
		if name == full || name == strings.TrimSuffix(full, "s") {
			return u, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownTimeUnit, "parse %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (u TimeUnit) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, errors.Wrapf(ErrInvalidTimeUnit, "marshal %d", int64(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *TimeUnit) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
