package engine

import (
	"sync"
	"time"
)

// TickSource delivers the periodic tick that drives session timers.
// Subscribe returns a cancel func; after cancel returns, fn is not called
// again by a conforming source (Session also guards against late ticks).
type TickSource interface {
	Subscribe(fn func()) (cancel func())
}

// ManualTicks is a TickSource advanced explicitly by the caller. Tests and
// simulations use it to run timers deterministically.
type ManualTicks struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewManualTicks() *ManualTicks {
	return &ManualTicks{subs: map[int]func(){}}
}

func (m *ManualTicks) Subscribe(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Tick delivers n ticks to every current subscriber, in order.
func (m *ManualTicks) Tick(n int) {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		fns := make([]func(), 0, len(m.subs))
		for id := 0; id < m.next; id++ {
			if fn, ok := m.subs[id]; ok {
				fns = append(fns, fn)
			}
		}
		m.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

// Subscribers reports how many subscriptions are live.
func (m *ManualTicks) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// WallTicks ticks every subscriber from its own time.Ticker.
type WallTicks struct {
	mu       sync.RWMutex
	interval time.Duration
}

func NewWallTicks(interval time.Duration) *WallTicks {
	if interval <= 0 {
		interval = time.Second
	}
	return &WallTicks{interval: interval}
}

// SetInterval changes the period used by subscriptions made afterwards.
func (w *WallTicks) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	w.interval = d
	w.mu.Unlock()
}

func (w *WallTicks) Interval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.interval
}

func (w *WallTicks) Subscribe(fn func()) func() {
	ticker := time.NewTicker(w.Interval())
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	// cancel never waits for the goroutine; callers may hold locks fn needs.
	return func() { once.Do(func() { close(stop) }) }
}
