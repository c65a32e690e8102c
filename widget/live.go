package widget

import "sync/atomic"

// LiveGames is the process-wide "games in progress" flag. Subscription widgets
// toggle it from their visibility sweep; the team widget reads it to stay visible.
type LiveGames struct {
	v atomic.Bool
}

// Toggle flips the flag when inProgress is true (XOR update).
func (l *LiveGames) Toggle(inProgress bool) {
	if !inProgress {
		return
	}
	for {
		old := l.v.Load()
		if l.v.CompareAndSwap(old, !old) {
			return
		}
	}
}

// Live reports the flag.
func (l *LiveGames) Live() bool {
	return l.v.Load()
}
