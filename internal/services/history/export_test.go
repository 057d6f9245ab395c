package history

import "time"

// SetClock replaces the clock used for CreatedAt and RemoveOutdated.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
