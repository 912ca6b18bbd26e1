package failinj

import "sync"

// RecordingObserver is an Observer that records every event it sees,
// for callers testing their own integration with a failinj-linked
// program's metrics path. Useful for unit testing applications that
// consume an Observer without standing up a real engine.
type RecordingObserver struct {
	mu sync.Mutex

	Decisions         []DecisionEvent
	DatabaseAppends   int
	Creates           []int
	Destroys          []int
	UntrackedReleases []int
	Leaks             []int
}

// DecisionEvent captures one ObserveDecision call.
type DecisionEvent struct {
	Injected bool
	Skipped  bool
}

// NewRecordingObserver creates an empty recording observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (r *RecordingObserver) ObserveDecision(injected, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Decisions = append(r.Decisions, DecisionEvent{Injected: injected, Skipped: skipped})
}

func (r *RecordingObserver) ObserveDatabaseAppend() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DatabaseAppends++
}

func (r *RecordingObserver) ObserveCreate(cat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Creates = append(r.Creates, cat)
}

func (r *RecordingObserver) ObserveDestroy(cat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Destroys = append(r.Destroys, cat)
}

func (r *RecordingObserver) ObserveUntrackedRelease(cat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UntrackedReleases = append(r.UntrackedReleases, cat)
}

func (r *RecordingObserver) ObserveLeak(cat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Leaks = append(r.Leaks, cat)
}

// InjectionCount reports how many recorded decisions actually
// injected a failure.
func (r *RecordingObserver) InjectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.Decisions {
		if d.Injected {
			n++
		}
	}
	return n
}

var _ Observer = (*RecordingObserver)(nil)
