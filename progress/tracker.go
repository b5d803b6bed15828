// Package progress implements the timer-driven progress indicator shown while
// a generation runs. The value climbs on its own up to a cap and only reaches
// 100 when the caller marks the work complete.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// State of a Tracker.
type State int

const (
	Idle State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "running":
		*s = Running
	case "completed":
		*s = Completed
	default:
		return fmt.Errorf("progress: unknown state %q", b)
	}
	return nil
}

// Snapshot is a point-in-time view of a Tracker.
type Snapshot struct {
	State State `json:"state"`
	Value int   `json:"value"`
}

// Ticker abstracts time.Ticker for tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Options configures a Tracker. Zero values take the defaults: a tick every
// 500ms adding 10, capped at 90.
type Options struct {
	Interval  time.Duration
	Step      int
	Cap       int
	OnChange  func(Snapshot)
	NewTicker func(time.Duration) Ticker
}

// Tracker is safe for concurrent use. OnChange runs without the lock held
// and may call back into the tracker.
type Tracker struct {
	mu    sync.Mutex
	opts  Options
	state State
	value int
	stop  chan struct{}

	// seq numbers state changes; notify drops a change older than the last
	// one delivered.
	seq       uint64
	delivered uint64
}

// New returns an idle tracker.
func New(opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.Step <= 0 {
		opts.Step = 10
	}
	if opts.Cap <= 0 || opts.Cap > 100 {
		opts.Cap = 90
	}
	if opts.NewTicker == nil {
		opts.NewTicker = func(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
	}
	return &Tracker{opts: opts}
}

// Start moves the tracker to Running at value 0 and begins ticking.
// Starting a running tracker is a no-op; starting a completed one restarts it.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.state == Running {
		t.mu.Unlock()
		return
	}
	t.state = Running
	t.value = 0
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.opts.NewTicker(t.opts.Interval)
	snap, seq := t.changeLocked()
	t.mu.Unlock()

	t.notify(snap, seq)
	go t.loop(ticker, stop)
}

func (t *Tracker) loop(ticker Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			t.tick(stop)
		case <-stop:
			return
		}
	}
}

func (t *Tracker) tick(stop chan struct{}) {
	t.mu.Lock()
	// A tick racing with Complete/Stop must not touch the new state.
	if t.state != Running || t.stop != stop {
		t.mu.Unlock()
		return
	}
	if t.value >= t.opts.Cap {
		t.mu.Unlock()
		return
	}
	t.value = min(t.opts.Cap, t.value+t.opts.Step)
	snap, seq := t.changeLocked()
	t.mu.Unlock()
	t.notify(snap, seq)
}

// Complete forces the value to 100 and stops ticking. It only applies to a
// running tracker. The tick loop exits on its own; Complete does not wait
// for it.
func (t *Tracker) Complete() {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return
	}
	t.state = Completed
	t.value = 100
	t.halt()
	snap, seq := t.changeLocked()
	t.mu.Unlock()

	t.notify(snap, seq)
}

// Stop returns the tracker to Idle from any state and cancels the timer.
func (t *Tracker) Stop() {
	t.mu.Lock()
	prev := t.state
	t.state = Idle
	t.value = 0
	t.halt()
	snap, seq := t.changeLocked()
	t.mu.Unlock()

	if prev != Idle {
		t.notify(snap, seq)
	}
}

// halt signals the tick loop to exit. Caller holds t.mu.
func (t *Tracker) halt() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}

// Snapshot returns the current state and value.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{State: t.state, Value: t.value}
}

// changeLocked returns the current snapshot with a fresh sequence number.
func (t *Tracker) changeLocked() (Snapshot, uint64) {
	t.seq++
	return t.snapshotLocked(), t.seq
}

func (t *Tracker) notify(s Snapshot, seq uint64) {
	if t.opts.OnChange == nil {
		return
	}
	t.mu.Lock()
	if seq < t.delivered {
		t.mu.Unlock()
		return
	}
	t.delivered = seq
	t.mu.Unlock()
	t.opts.OnChange(s)
}
