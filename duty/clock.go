package duty

import "time"

// =============================================================================
// CLOCK - civil-time source pinned to the roster timezone
// =============================================================================

// DefaultTimezone is the civil timezone all day and month keys are derived
// in. The roster operates in one fixed zone; it is configurable at startup
// but never per-request.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// Clock supplies the current instant and calendar day. All engine
// operations take their notion of "now" and "today" from here so that tests
// and the reconciler can pin time deterministically.
type Clock interface {
	Now() time.Time
	Today() DayKey
	Location() *time.Location
}

// ZoneClock is the production clock: wall time converted into a fixed zone.
type ZoneClock struct {
	loc *time.Location
}

func NewZoneClock(loc *time.Location) *ZoneClock {
	if loc == nil {
		loc = time.UTC
	}
	return &ZoneClock{loc: loc}
}

// LoadZoneClock resolves a timezone by name. An empty name means
// DefaultTimezone.
func LoadZoneClock(name string) (*ZoneClock, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return NewZoneClock(loc), nil
}

func (c *ZoneClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *ZoneClock) Today() DayKey            { return DayKeyOf(c.Now()) }
func (c *ZoneClock) Location() *time.Location { return c.loc }

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	Current time.Time
}

func NewManualClock(t time.Time) *ManualClock { return &ManualClock{Current: t} }

func (c *ManualClock) Now() time.Time           { return c.Current }
func (c *ManualClock) Today() DayKey            { return DayKeyOf(c.Current) }
func (c *ManualClock) Location() *time.Location { return c.Current.Location() }

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }

// Set pins the clock to an instant.
func (c *ManualClock) Set(t time.Time) { c.Current = t }
