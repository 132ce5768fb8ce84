package gateway

import "time"

// Supervisor decides whether a closed session gets redialed. Delay is
// fixed; upstream rate limiting is handled by the attempt ceiling, not
// backoff growth.
type Supervisor struct {
	delay       time.Duration
	maxAttempts int
}

// NewSupervisor builds a supervisor with the given redial delay and
// attempt ceiling. maxAttempts 0 means unlimited.
func NewSupervisor(delay time.Duration, maxAttempts int) *Supervisor {
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &Supervisor{delay: delay, maxAttempts: maxAttempts}
}

// Assess returns the delay before the next dial and whether to dial at
// all. attempt is the number of redials already made for this session.
func (s *Supervisor) Assess(reason *CloseReason, attempt int) (time.Duration, bool) {
	if reason.Terminal() {
		return 0, false
	}
	if s.maxAttempts > 0 && attempt >= s.maxAttempts {
		return 0, false
	}
	return s.delay, true
}
