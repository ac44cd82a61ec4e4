package agenda

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadTimeSpec means the time/datetime string did not parse.
	ErrBadTimeSpec = errors.New("invalid time spec")
	// ErrInPast means a full datetime resolved strictly before now.
	ErrInPast = errors.New("time is in the past")
)

const datetimeLayout = "2006-01-02 15:04:05"

// Resolver maps user time specs to absolute fire instants.
//
// It is pure: no shared state, no side effects. All date math happens in the
// resolver's location so "today" means the user's today.
type Resolver struct {
	loc *time.Location
}

func NewResolver(loc *time.Location) Resolver {
	if loc == nil {
		loc = time.Local
	}
	return Resolver{loc: loc}
}

// ResolveTimeOfDay parses a 24h "HH:MM" spec and combines it with now's date.
// A time-of-day that already passed today means the next occurrence, i.e.
// exactly 24 hours after the same-day combination. The result is never before
// now.
func (r Resolver) ResolveTimeOfDay(spec string, now time.Time) (time.Time, error) {
	h, m, err := parseHHMM(spec)
	if err != nil {
		return time.Time{}, err
	}
	now = now.In(r.loc)
	at := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, r.loc)
	if at.Before(now) {
		at = at.Add(24 * time.Hour)
	}
	return at, nil
}

// ResolveAbsoluteDateTime parses a full "YYYY-MM-DD HH:MM:SS" spec.
// Unlike the time-of-day case, a datetime strictly before now is a user error
// (ErrInPast), never an implicit "tomorrow".
func (r Resolver) ResolveAbsoluteDateTime(spec string, now time.Time) (time.Time, error) {
	at, err := time.ParseInLocation(datetimeLayout, strings.TrimSpace(spec), r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD HH:MM:SS)", ErrBadTimeSpec, spec)
	}
	if at.Before(now) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInPast, at.Format(datetimeLayout))
	}
	return at, nil
}

func parseHHMM(raw string) (h, m int, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q (want HH:MM)", ErrBadTimeSpec, raw)
	}
	h, err = strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: %q (hour out of range)", ErrBadTimeSpec, raw)
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: %q (minute out of range)", ErrBadTimeSpec, raw)
	}
	return h, m, nil
}
