package relay

import "time"

// SetGrace shortens the background grace period.
func (a *Automatic) SetGrace(d time.Duration) {
	a.mu.Lock()
	a.grace = d
	a.mu.Unlock()
}
