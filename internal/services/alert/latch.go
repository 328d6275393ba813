package alert

import "sync/atomic"

// Latch is the per-session alert flag. It starts inactive and can be
// activated exactly once; it never resets.
type Latch struct {
	active atomic.Bool
}

// Activate sets the latch. Only the first caller gets true.
func (l *Latch) Activate() bool {
	return l.active.CompareAndSwap(false, true)
}

// Active reports whether the latch has been set.
func (l *Latch) Active() bool {
	return l.active.Load()
}
