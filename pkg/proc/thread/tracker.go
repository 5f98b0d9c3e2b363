package thread

import (
	"fmt"
	"sort"

	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/regctx"
)

// Tracker is the thread table of a traced process. Threads are created
// when first observed or announced by a new-thread event and removed when
// they exit.
type Tracker struct {
	proc    ProcessControl
	cfg     Config
	metrics *Metrics
	threads map[int]*Thread
}

// NewTracker creates an empty thread table. Metrics may be nil.
func NewTracker(proc ProcessControl, cfg Config, metrics *Metrics) *Tracker {
	if cfg.Stops == nil {
		cfg.Stops = new(regctx.StopCounter)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Tracker{proc: proc, cfg: cfg, metrics: metrics, threads: make(map[int]*Thread)}
}

// Stops returns the stop counter of the process.
func (tr *Tracker) Stops() *regctx.StopCounter {
	return tr.cfg.Stops
}

// Add starts tracking thread tid. Adding a known thread returns it.
func (tr *Tracker) Add(tid int) (*Thread, error) {
	if t, ok := tr.threads[tid]; ok {
		return t, nil
	}
	t, err := New(tid, tr.proc, tr.cfg)
	if err != nil {
		return nil, fmt.Errorf("thread %d: %w", tid, err)
	}
	tr.threads[tid] = t
	tr.metrics.Threads.Set(float64(len(tr.threads)))
	if logflags.Thread() {
		logflags.ThreadLogger().Debugf("tracking thread %d", tid)
	}
	return t, nil
}

// Thread returns the thread with the given id.
func (tr *Tracker) Thread(tid int) (*Thread, bool) {
	t, ok := tr.threads[tid]
	return t, ok
}

// Threads returns the tracked threads ordered by id.
func (tr *Tracker) Threads() []*Thread {
	r := make([]*Thread, 0, len(tr.threads))
	for _, t := range tr.threads {
		r = append(r, t)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].ID < r[j].ID })
	return r
}

// Dispatch processes the events of one stop of the process. The stop
// counter is bumped once and every thread is refreshed before the events
// are delivered, in order. Delivery continues after a failed event, the
// first error is returned.
func (tr *Tracker) Dispatch(events ...Event) error {
	tr.cfg.Stops.Bump()
	for _, t := range tr.Threads() {
		t.RefreshStateAfterStop()
	}

	var firstErr error
	for _, ev := range events {
		if err := tr.deliver(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (tr *Tracker) deliver(ev Event) error {
	tr.metrics.Events.WithLabelValues(ev.Kind.String()).Inc()
	t, err := tr.Add(ev.TID)
	if err != nil {
		return err
	}
	if err := t.Notify(ev); err != nil {
		return fmt.Errorf("thread %d: %w", ev.TID, err)
	}
	switch ev.Kind {
	case EventExit:
		delete(tr.threads, ev.TID)
		tr.metrics.Threads.Set(float64(len(tr.threads)))
		if logflags.Thread() {
			logflags.ThreadLogger().Debugf("thread %d exited with status %d", ev.TID, ev.Status)
		}
		return nil
	case EventNewThread:
		if ev.ChildTID != 0 {
			if _, err := tr.Add(ev.ChildTID); err != nil {
				return err
			}
		}
	}
	tr.metrics.Stops.WithLabelValues(t.StopInfo().Kind.String()).Inc()
	return nil
}

// Resume resumes every tracked thread in id order and returns the first
// error.
func (tr *Tracker) Resume() error {
	var firstErr error
	for _, t := range tr.Threads() {
		if err := t.Resume(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
