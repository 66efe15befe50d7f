package config

import (
	"fmt"
	"math"
	"time"

	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

// TimeUnit is the closed set of units accepted for the sweep interval.
type TimeUnit int

const (
	Seconds TimeUnit = iota + 1
	Minutes
	Hours
)

// ParseTimeUnit parses one of "Seconds", "Minutes" or "Hours".
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch s {
	case "Seconds":
		return Seconds, nil
	case "Minutes":
		return Minutes, nil
	case "Hours":
		return Hours, nil
	}
	return 0, fmt.Errorf("%w: unknown time unit %q (want Seconds, Minutes or Hours)", warperrors.ErrConfig, s)
}

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "Seconds"
	case Minutes:
		return "Minutes"
	case Hours:
		return "Hours"
	}
	return fmt.Sprintf("TimeUnit(%d)", int(u))
}

func (u TimeUnit) base() time.Duration {
	switch u {
	case Seconds:
		return time.Second
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	}
	return 0
}

// MaxMagnitude is the largest n for which Duration(n) does not overflow.
func (u TimeUnit) MaxMagnitude() int64 {
	b := u.base()
	if b == 0 {
		return 0
	}
	return math.MaxInt64 / int64(b)
}

// Duration returns n units as a time.Duration. Callers check n against
// MaxMagnitude first.
func (u TimeUnit) Duration(n int64) time.Duration {
	return time.Duration(n) * u.base()
}
