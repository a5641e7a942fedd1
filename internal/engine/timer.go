package engine

// Timer tracks elapsed seconds and, when limited, counts down to a single
// expiry. It is advanced by Tick, once per second of active time, and is not
// safe for concurrent use on its own; Session guards it.
type Timer struct {
	limit     int
	limited   bool
	elapsed   int
	remaining int
	started   bool
	running   bool
	expired   bool
}

// Start arms the timer. With limited false the timer only accumulates
// elapsed time and never expires. Starting twice is a no-op.
func (t *Timer) Start(limitSeconds int, limited bool) {
	if t.started {
		return
	}
	t.started = true
	t.running = true
	t.limited = limited
	if limited {
		if limitSeconds < 0 {
			limitSeconds = 0
		}
		t.limit = limitSeconds
		t.remaining = limitSeconds
	}
}

func (t *Timer) Pause() {
	if t.started && !t.expired {
		t.running = false
	}
}

func (t *Timer) Resume() {
	if t.started && !t.expired {
		t.running = true
	}
}

// Stop freezes the timer for good.
func (t *Timer) Stop() {
	t.running = false
}

// Tick advances one second. It returns true exactly once: on the tick that
// brings the countdown to zero. Ticks before Start, while paused or after
// expiry change nothing.
func (t *Timer) Tick() bool {
	if !t.running || t.expired {
		return false
	}
	t.elapsed++
	if !t.limited {
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.expired = true
		t.running = false
		return true
	}
	return false
}

func (t *Timer) Elapsed() int { return t.elapsed }

// Remaining reports the seconds left and whether a limit is configured.
func (t *Timer) Remaining() (int, bool) {
	if !t.limited {
		return 0, false
	}
	return t.remaining, true
}

func (t *Timer) Expired() bool { return t.expired }

func (t *Timer) Running() bool { return t.running }
