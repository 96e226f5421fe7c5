// Package timewindow computes timezone-correct delivery instants.
//
// A notification may only be delivered inside a configurable local
// time-of-day window (the "appropriate hours"); requests that fall
// outside the window are advanced to the next occurrence of the
// window start in the recipient's timezone.
package timewindow

import (
	"errors"
	"fmt"
	"time"
)

// Default delivery window boundaries, hours in the recipient's local time.
const (
	DefaultStartHour = 8
	DefaultEndHour   = 22
)

// ErrInvalidTimezone is returned when a timezone identifier cannot be
// resolved against the IANA database.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Resolver applies the appropriate-hours policy. The window is
// [startHour, endHour) in the recipient's local time.
type Resolver struct {
	startHour int
	endHour   int
}

// NewResolver creates a Resolver with the given window boundaries.
// Out-of-range boundaries fall back to the defaults.
func NewResolver(startHour, endHour int) Resolver {
	if startHour < 0 || startHour > 23 || endHour < 1 || endHour > 24 || startHour >= endHour {
		startHour = DefaultStartHour
		endHour = DefaultEndHour
	}
	return Resolver{startHour: startHour, endHour: endHour}
}

// Resolve converts a requested delivery time into the effective UTC
// delivery instant and reports whether the request already fell inside
// the appropriate-hours window of the given timezone.
//
// A nil requested time means "now". When the local hour of the
// requested instant is outside the window, the instant is advanced to
// the next occurrence of the window start: the same day if the hour is
// before the start, the next day if it is at or past the end. The
// advanced instant is built from the target calendar date in the
// recipient's location, so daylight-saving rules of that date apply.
func (r Resolver) Resolve(requested *time.Time, timezone string, now time.Time) (time.Time, bool, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	instant := now
	if requested != nil {
		instant = *requested
	}

	local := instant.In(loc)
	if r.within(local.Hour()) {
		return instant.UTC(), true, nil
	}

	return r.nextWindowStart(local, loc), false, nil
}

// ToLocal renders a UTC instant as an RFC 3339 string in the given
// timezone. Display only, no windowing is applied.
func (r Resolver) ToLocal(instant time.Time, timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	return instant.In(loc).Format(time.RFC3339), nil
}

// ParseRequestedTime parses a caller-supplied scheduled time string.
// RFC 3339 values keep their explicit offset; naive values are
// interpreted in the given timezone. An empty value yields nil,
// meaning "now".
func (r Resolver) ParseRequestedTime(value, timezone string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	if err != nil {
		return nil, fmt.Errorf("parse scheduled time %q: %w", value, err)
	}

	return &t, nil
}

func (r Resolver) within(hour int) bool {
	return hour >= r.startHour && hour < r.endHour
}

func (r Resolver) nextWindowStart(local time.Time, loc *time.Location) time.Time {
	day := local
	if local.Hour() >= r.endHour {
		day = day.AddDate(0, 0, 1)
	}

	next := time.Date(day.Year(), day.Month(), day.Day(), r.startHour, 0, 0, 0, loc)

	return next.UTC()
}
