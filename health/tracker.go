package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-upf/upf/logger"
	"github.com/go-upf/upf/pkg/routine"
)

type Prober interface {
	Probe(ctx context.Context, pluginID, endpoint string) Signal
}

type ProbeFunc func(ctx context.Context, pluginID, endpoint string) Signal

func (f ProbeFunc) Probe(ctx context.Context, pluginID, endpoint string) Signal {
	return f(ctx, pluginID, endpoint)
}

type record struct {
	Record
	endpoint  string
	trackedAt time.Time
	depDown   bool
	exhausted bool
	cancel    context.CancelFunc
}

// Tracker runs one probe loop per tracked plugin and owns every
// HealthRecord. Transition and exhaustion callbacks fire outside the state
// lock but under the emit lock, so watchers observe transitions for a
// given plugin in the order they were applied.
type Tracker struct {
	emit         sync.Mutex
	mu           sync.Mutex
	records      map[string]*record
	prober       Prober
	interval     time.Duration
	timeout      time.Duration
	grace        time.Duration
	threshold    int
	onTransition func(Record)
	onExhausted  func(pluginID string)
	now          func() time.Time
	logger       logger.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

type TrackerOption func(*Tracker)

func Interval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func ProbeTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func Grace(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d >= 0 {
			t.grace = d
		}
	}
}

func FailureThreshold(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.threshold = n
		}
	}
}

func OnTransition(fn func(Record)) TrackerOption {
	return func(t *Tracker) {
		t.onTransition = fn
	}
}

func OnExhausted(fn func(pluginID string)) TrackerOption {
	return func(t *Tracker) {
		t.onExhausted = fn
	}
}

func TrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func TrackerLogger(l logger.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

func NewTracker(prober Prober, opts ...TrackerOption) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		records:   make(map[string]*record),
		prober:    prober,
		interval:  5 * time.Second,
		timeout:   2 * time.Second,
		grace:     30 * time.Second,
		threshold: 3,
		now:       time.Now,
		logger:    logger.GetLogger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Interval() time.Duration {
	return t.interval
}

// Track creates the plugin's HealthRecord in state UNKNOWN and starts its
// probe loop. Tracking an already tracked id restarts its loop with the
// new endpoint.
func (t *Tracker) Track(pluginID, endpoint string) Record {
	ctx, cancel := context.WithCancel(t.ctx)
	t.mu.Lock()
	if old, ok := t.records[pluginID]; ok {
		old.cancel()
	}
	rec := &record{
		Record: Record{
			PluginID:         pluginID,
			State:            StateUnknown,
			LastTransitionAt: t.now(),
		},
		endpoint:  endpoint,
		trackedAt: t.now(),
		cancel:    cancel,
	}
	t.records[pluginID] = rec
	out := rec.Record
	t.mu.Unlock()
	routine.GoSafe(ctx, func() {
		t.loop(ctx, pluginID)
	})
	return out
}

func (t *Tracker) Forget(pluginID string) {
	t.mu.Lock()
	rec, ok := t.records[pluginID]
	if ok {
		rec.cancel()
		delete(t.records, pluginID)
	}
	t.mu.Unlock()
}

func (t *Tracker) Get(pluginID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[pluginID]
	if !ok {
		return Record{}, false
	}
	return rec.Record, true
}

func (t *Tracker) State(pluginID string) State {
	rec, ok := t.Get(pluginID)
	if !ok {
		return StateUnknown
	}
	return rec.State
}

func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.Record)
	}
	return out
}

func (t *Tracker) Stop() {
	t.cancel()
}

func (t *Tracker) loop(ctx context.Context, pluginID string) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.probe(ctx, pluginID)
		}
	}
}

func (t *Tracker) probe(ctx context.Context, pluginID string) {
	t.mu.Lock()
	rec, ok := t.records[pluginID]
	if !ok {
		t.mu.Unlock()
		return
	}
	endpoint := rec.endpoint
	t.mu.Unlock()

	cx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	ch := make(chan Signal, 1)
	routine.GoSafe(cx, func() {
		ch <- t.prober.Probe(cx, pluginID, endpoint)
	})
	select {
	case sig := <-ch:
		t.Apply(pluginID, sig)
	case <-cx.Done():
		if ctx.Err() != nil {
			return
		}
		t.Apply(pluginID, SignalTimeout)
	}
}

// Apply feeds one probe outcome into the state machine. Exported as the
// seam between the probe loop and tests.
func (t *Tracker) Apply(pluginID string, sig Signal) {
	t.emit.Lock()
	defer t.emit.Unlock()

	t.mu.Lock()
	rec, ok := t.records[pluginID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if sig == SignalServing {
		rec.ConsecutiveFailures = 0
	} else {
		rec.ConsecutiveFailures++
	}
	prev := rec.State
	next := Next(sig, rec.depDown)
	changed := next != prev
	if changed {
		rec.State = next
		rec.LastTransitionAt = t.now()
	}
	exhausted := !rec.exhausted &&
		next == StateUnhealthy &&
		rec.ConsecutiveFailures >= t.threshold &&
		t.now().Sub(rec.trackedAt) >= t.grace
	if exhausted {
		rec.exhausted = true
	}
	out := rec.Record
	t.mu.Unlock()

	if changed {
		t.logger.Log(context.TODO(), logger.InfoLevel, map[string]interface{}{
			"plugin": pluginID,
			"from":   prev,
			"to":     next,
			"signal": sig.String(),
		}, "health transition")
		if t.onTransition != nil {
			t.onTransition(out)
		}
	}
	if exhausted && t.onExhausted != nil {
		t.onExhausted(pluginID)
	}
}

// SetDependencyDown flips the degraded propagation flag: a plugin whose
// non-critical dependency is unhealthy reads DEGRADED instead of HEALTHY
// until the dependency recovers.
func (t *Tracker) SetDependencyDown(pluginID string, down bool) {
	t.emit.Lock()
	defer t.emit.Unlock()

	t.mu.Lock()
	rec, ok := t.records[pluginID]
	if !ok {
		t.mu.Unlock()
		return
	}
	rec.depDown = down
	prev := rec.State
	var next State
	switch {
	case prev == StateHealthy && down:
		next = StateDegraded
	case prev == StateDegraded && !down:
		next = StateHealthy
	default:
		t.mu.Unlock()
		return
	}
	rec.State = next
	rec.LastTransitionAt = t.now()
	out := rec.Record
	t.mu.Unlock()

	if t.onTransition != nil {
		t.onTransition(out)
	}
}
