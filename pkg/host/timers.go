package host

import (
	"time"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// MinTimerInterval is the resolution floor of plugin timers and the longest the worker
// sleeps between two iterations.
const MinTimerInterval = 30 * time.Millisecond

type timerEntry struct {
	id       plugin.TimerID
	interval time.Duration
	lastFire time.Time
}

// due reports whether the entry fires at now and stamps it if so. A clock that went
// backwards or did not move counts as not due.
func (t *timerEntry) due(now time.Time) bool {
	if !t.lastFire.IsZero() {
		since := now.Sub(t.lastFire)
		if since <= t.interval {
			return false
		}
	}
	t.lastFire = now
	return true
}

// Timers tracks the periodic callbacks a plugin registered. It is owned by the worker
// goroutine and not safe for concurrent use.
type Timers struct {
	floor    time.Duration
	entries  map[plugin.TimerID]*timerEntry
	latestID plugin.TimerID
	smallest time.Duration
}

func NewTimers(floor time.Duration) *Timers {
	if floor <= 0 {
		floor = MinTimerInterval
	}
	return &Timers{
		floor:   floor,
		entries: make(map[plugin.TimerID]*timerEntry),
	}
}

// Register adds a timer with interval floored to the resolution and returns its id.
// The timer fires on the first Tick after registration.
func (t *Timers) Register(interval time.Duration) plugin.TimerID {
	if interval < t.floor {
		interval = t.floor
	}
	t.latestID++
	id := t.latestID
	t.entries[id] = &timerEntry{id: id, interval: interval}

	if t.smallest == 0 || interval < t.smallest {
		t.smallest = interval
	}
	return id
}

// Unregister removes id and reports whether it was registered.
func (t *Timers) Unregister(id plugin.TimerID) bool {
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)

	t.smallest = 0
	for _, e := range t.entries {
		if t.smallest == 0 || e.interval < t.smallest {
			t.smallest = e.interval
		}
	}
	return true
}

// Tick returns the ids of the timers due at now, in no particular order.
func (t *Timers) Tick(now time.Time) []plugin.TimerID {
	var fired []plugin.TimerID
	for _, e := range t.entries {
		if e.due(now) {
			fired = append(fired, e.id)
		}
	}
	return fired
}

// Smallest returns the shortest registered interval.
func (t *Timers) Smallest() (time.Duration, bool) {
	return t.smallest, t.smallest != 0
}

// NextWait is how long the worker may sleep before timers need attention.
func (t *Timers) NextWait() time.Duration {
	if d, ok := t.Smallest(); ok {
		return d
	}
	return t.floor
}

// Interval returns the effective interval of id.
func (t *Timers) Interval(id plugin.TimerID) (time.Duration, bool) {
	e, ok := t.entries[id]
	if !ok {
		return 0, false
	}
	return e.interval, true
}

func (t *Timers) Len() int { return len(t.entries) }
