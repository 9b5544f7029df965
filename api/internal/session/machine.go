package session

import (
	"context"
	"log"
	"sync"

	"snap-to-spec/api/internal/guide/types"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/presenter"
)

// Analyzer turns an image into a guide. *guide.Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, key string, img ingest.Payload) (types.RepairGuide, error)
}

const subBuffer = 16

// Machine is one analysis session. All methods are safe for concurrent use.
type Machine struct {
	id string
	an Analyzer

	mu        sync.Mutex
	phase     Phase
	guide     *types.RepairGuide
	errMsg    string
	checklist *presenter.Checklist
	last      *ingest.Payload

	// done is closed when the current cycle settles; each cycle gets its own.
	done chan struct{}

	subs    map[int]chan Event
	nextSub int
	closed  bool
}

func NewMachine(id string, an Analyzer) *Machine {
	done := make(chan struct{})
	close(done)
	return &Machine{
		id:   id,
		an:   an,
		done: done,
		subs: make(map[int]chan Event),
	}
}

func (m *Machine) ID() string { return m.id }

// Submit runs one analysis cycle and returns the terminal snapshot.
// ErrBusy is the only error; analysis failures end up in the snapshot.
func (m *Machine) Submit(ctx context.Context, img ingest.Payload) (Snapshot, error) {
	_, done, err := m.begin(img)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.run(ctx, img, done), nil
}

// SubmitAsync moves to Loading before returning and finishes in the background.
// The returned channel is closed when this cycle settles.
// The analysis is detached from ctx cancellation so it outlives e.g. an HTTP request.
func (m *Machine) SubmitAsync(ctx context.Context, img ingest.Payload) (Snapshot, <-chan struct{}, error) {
	snap, done, err := m.begin(img)
	if err != nil {
		return snap, nil, err
	}
	go m.run(context.WithoutCancel(ctx), img, done)
	return snap, done, nil
}

// Retry re-submits the last image. Only valid from Failure.
func (m *Machine) Retry(ctx context.Context) (Snapshot, error) {
	img, err := m.retryImage()
	if err != nil {
		return m.Snapshot(), err
	}
	return m.Submit(ctx, img)
}

func (m *Machine) RetryAsync(ctx context.Context) (Snapshot, <-chan struct{}, error) {
	img, err := m.retryImage()
	if err != nil {
		return m.Snapshot(), nil, err
	}
	return m.SubmitAsync(ctx, img)
}

func (m *Machine) retryImage() (ingest.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.phase == Loading:
		return ingest.Payload{}, ErrBusy
	case m.phase != Failure || m.last == nil:
		return ingest.Payload{}, ErrNoImage
	}
	return *m.last, nil
}

// Wait blocks until the cycle in progress, if any, has settled.
func (m *Machine) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	<-done
}

func (m *Machine) begin(img ingest.Payload) (Snapshot, chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Loading {
		return m.snapshotLocked(), nil, ErrBusy
	}
	m.done = make(chan struct{})
	m.phase = Loading
	m.guide = nil
	m.errMsg = ""
	m.checklist = nil
	m.last = &img
	log.Printf("session %s: loading (%s, %d bytes)", m.id, img.MIME, img.Size())
	snap := m.snapshotLocked()
	m.publishLocked(Event{Kind: EventLoading, Snapshot: snap})
	return snap, m.done, nil
}

func (m *Machine) run(ctx context.Context, img ingest.Payload, done chan struct{}) Snapshot {
	g, err := m.an.Analyze(ctx, m.id, img)

	m.mu.Lock()
	defer m.mu.Unlock()
	ev := Event{Kind: EventSuccess}
	if err != nil {
		m.phase = Failure
		m.errMsg = err.Error()
		ev.Kind = EventFailure
	} else {
		m.phase = Success
		m.guide = &g
		m.checklist = presenter.NewChecklist(g)
	}
	log.Printf("session %s: %s", m.id, m.phase)
	ev.Snapshot = m.snapshotLocked()
	m.publishLocked(ev)
	close(done)
	return ev.Snapshot
}

// Reset returns to Idle, dropping the guide, the error and the checklist.
// It is refused while Loading; from Idle it is a no-op.
func (m *Machine) Reset() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case Loading:
		return m.snapshotLocked(), ErrBusy
	case Idle:
		return m.snapshotLocked(), nil
	}
	m.phase = Idle
	m.guide = nil
	m.errMsg = ""
	m.checklist = nil
	m.last = nil
	snap := m.snapshotLocked()
	m.publishLocked(Event{Kind: EventReset, Snapshot: snap})
	return snap, nil
}

// Toggle flips the completion of step n of the current guide.
func (m *Machine) Toggle(n int) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Success || m.checklist == nil {
		return m.snapshotLocked(), ErrNoGuide
	}
	if _, err := m.checklist.Toggle(n); err != nil {
		return m.snapshotLocked(), err
	}
	snap := m.snapshotLocked()
	m.publishLocked(Event{Kind: EventToggle, Step: n, Snapshot: snap})
	return snap, nil
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// View is the presenter view of the current guide; ok is false unless the session is in Success.
func (m *Machine) View() (presenter.View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Success || m.guide == nil {
		return presenter.View{}, false
	}
	return presenter.NewView(*m.guide, m.checklist), true
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{ID: m.id, Phase: m.phase, CompletedSteps: []int{}}
	switch m.phase {
	case Loading:
		s.IsLoading = true
	case Failure:
		msg := m.errMsg
		s.Error = &msg
	case Success:
		g := *m.guide
		s.Data = &g
		s.CompletedSteps = m.checklist.Completed()
		s.AllComplete = m.checklist.AllComplete()
		b := presenter.BadgeFor(g.DifficultyLevel)
		c := presenter.CompletionCopy(s.AllComplete)
		s.Badge, s.Copy = &b, &c
	}
	return s
}

// Subscribe streams events until cancel is called or the session is closed.
// A subscriber that falls behind misses events rather than blocking the session.
func (m *Machine) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, subBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription. The session keeps working otherwise.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, c := range m.subs {
		delete(m.subs, id)
		close(c)
	}
}

func (m *Machine) publishLocked(ev Event) {
	for _, c := range m.subs {
		select {
		case c <- ev:
		default:
			log.Printf("session %s: subscriber lagging, dropped %s", m.id, ev.Kind)
		}
	}
}
