package cooldown

import (
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type Admission int

const (
	Allow Admission = iota
	// WarnBlocked is returned once per window, on the message that reaches
	// the threshold. The caller should tell the sender.
	WarnBlocked
	// SilentlyBlocked is every later message in the same window.
	SilentlyBlocked
)

func (a Admission) String() string {
	switch a {
	case WarnBlocked:
		return "warn-blocked"
	case SilentlyBlocked:
		return "silently-blocked"
	default:
		return "allow"
	}
}

// Limits configures the tracker. A zero or negative Threshold disables it.
type Limits struct {
	Window    time.Duration
	Threshold int
	// Block is the duration announced to a blocked sender when it is longer
	// than Window. The window itself is never extended.
	Block time.Duration
}

type entry struct {
	count atomic.Int64
	gen   uint64
	timer *time.Timer
}

// Tracker counts messages per sender over fixed windows. The first message
// from a sender opens a window; when the window timer fires the entry is
// dropped and the next message starts from zero.
type Tracker struct {
	entries cmap.ConcurrentMap[string, *entry]
	limits  atomic.Pointer[Limits]
	gen     atomic.Uint64
}

func New(limits Limits) *Tracker {
	t := &Tracker{entries: cmap.New[*entry]()}
	t.SetLimits(limits)
	return t
}

// SetLimits applies to windows opened afterwards.
func (t *Tracker) SetLimits(limits Limits) {
	t.limits.Store(&limits)
}

func (t *Tracker) Limits() Limits {
	return *t.limits.Load()
}

// Admit records one message from sender and classifies it. Increment and
// comparison happen under the sender's shard lock, so concurrent calls for
// one sender see strictly increasing counts.
func (t *Tracker) Admit(sender string) Admission {
	limits := t.Limits()
	if limits.Threshold <= 0 || limits.Window <= 0 {
		return Allow
	}

	var result Admission
	t.entries.Upsert(sender, nil, func(exist bool, cur *entry, _ *entry) *entry {
		if !exist || cur == nil {
			cur = &entry{gen: t.gen.Add(1)}
			cur.timer = time.AfterFunc(limits.Window, t.expire(sender, cur.gen))
		}

		n := cur.count.Add(1)
		switch {
		case n < int64(limits.Threshold):
			result = Allow
		case n == int64(limits.Threshold):
			result = WarnBlocked
		default:
			result = SilentlyBlocked
		}
		return cur
	})
	return result
}

// expire drops the entry only if it is still the one the timer was armed for.
func (t *Tracker) expire(sender string, gen uint64) func() {
	return func() {
		t.entries.RemoveCb(sender, func(_ string, cur *entry, exists bool) bool {
			return exists && cur != nil && cur.gen == gen
		})
	}
}

// Count returns the messages seen from sender in the current window.
func (t *Tracker) Count(sender string) int {
	cur, ok := t.entries.Get(sender)
	if !ok || cur == nil {
		return 0
	}
	return int(cur.count.Load())
}

// Active returns the number of senders with an open window.
func (t *Tracker) Active() int {
	return t.entries.Count()
}

// Reset stops every pending timer and forgets all senders.
func (t *Tracker) Reset() {
	t.entries.IterCb(func(_ string, cur *entry) {
		if cur != nil && cur.timer != nil {
			cur.timer.Stop()
		}
	})
	t.entries.Clear()
}
