package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/repo"
	"github.com/shaiso/Quanta/internal/workflow"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type memStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMemStore(tasks ...*domain.Task) *memStore {
	m := &memStore{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, t := range tasks {
		copied := *t
		m.tasks[t.ID] = &copied
	}
	return m
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, upd repo.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return repo.ErrNotFound
	}
	for _, from := range upd.From {
		if t.Status == from {
			t.Status = upd.To
			t.Result = upd.Result
			t.Error = upd.Error
			return nil
		}
	}
	return repo.ErrConflict
}

func (m *memStore) ListUnfinished(_ context.Context, limit int) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if !t.IsFinished() {
			out = append(out, *t)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) status(id uuid.UUID) domain.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Status
}

type memHistory struct {
	mu     sync.Mutex
	events map[uuid.UUID][]domain.HistoryEvent
}

func newMemHistory() *memHistory {
	return &memHistory{events: make(map[uuid.UUID][]domain.HistoryEvent)}
}

func (m *memHistory) Append(_ context.Context, event *domain.HistoryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events[event.WorkflowID] {
		if e.Seq == event.Seq {
			return repo.ErrAlreadyExists
		}
	}
	m.events[event.WorkflowID] = append(m.events[event.WorkflowID], *event)
	return nil
}

func (m *memHistory) Load(_ context.Context, workflowID uuid.UUID) ([]domain.HistoryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryEvent(nil), m.events[workflowID]...), nil
}

// memLeases повторяет семантику LeaseRepo: захват свободного,
// своего или истёкшего lease.
type memLeases struct {
	mu     sync.Mutex
	leases map[uuid.UUID]lease
}

type lease struct {
	holder    string
	expiresAt time.Time
}

func newMemLeases() *memLeases {
	return &memLeases{leases: make(map[uuid.UUID]lease)}
}

func (m *memLeases) Acquire(_ context.Context, id uuid.UUID, holder string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[id]
	if ok && l.holder != holder && l.expiresAt.After(time.Now()) {
		return repo.ErrLeaseHeld
	}
	m.leases[id] = lease{holder: holder, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memLeases) Renew(_ context.Context, id uuid.UUID, holder string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[id]
	if !ok || l.holder != holder {
		return repo.ErrLeaseHeld
	}
	m.leases[id] = lease{holder: holder, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memLeases) Release(_ context.Context, id uuid.UUID, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[id]; ok && l.holder == holder {
		delete(m.leases, id)
	}
	return nil
}

type blockingActivity struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	calls   int
}

func (a *blockingActivity) Execute(ctx context.Context, _ string) (domain.Histogram, error) {
	a.mu.Lock()
	a.calls++
	first := a.calls == 1
	a.mu.Unlock()

	if first {
		close(a.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.release:
		return domain.Histogram{"0": 1}, nil
	}
}

type instantActivity struct {
	mu    sync.Mutex
	calls int
}

func (a *instantActivity) Execute(context.Context, string) (domain.Histogram, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return domain.Histogram{"0": 1}, nil
}

func (a *instantActivity) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newWorker(store *memStore, history *memHistory, leases *memLeases, act workflow.Activity) *Worker {
	return New(Config{
		Tasks:    store,
		History:  history,
		Leases:   leases,
		Activity: act,
		Holder:   "test-worker",
		Logger:   discardLogger(),
	})
}

// --- tests ---

func TestProcessTaskRunsToCompletion(t *testing.T) {
	task := domain.NewTask("circuit")
	store := newMemStore(task)
	leases := newMemLeases()
	act := &instantActivity{}

	w := newWorker(store, newMemHistory(), leases, act)
	w.processTask(context.Background(), task.ID)

	if got := store.status(task.ID); got != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got)
	}
	if act.callCount() != 1 {
		t.Errorf("activity calls = %d, want 1", act.callCount())
	}

	// lease освобождён
	if err := leases.Acquire(context.Background(), task.ID, "other", time.Minute); err != nil {
		t.Errorf("lease not released: %v", err)
	}
}

func TestProcessTaskSkipsHeldLease(t *testing.T) {
	task := domain.NewTask("circuit")
	store := newMemStore(task)
	leases := newMemLeases()
	if err := leases.Acquire(context.Background(), task.ID, "another-worker", time.Minute); err != nil {
		t.Fatalf("setup lease: %v", err)
	}

	act := &instantActivity{}
	w := newWorker(store, newMemHistory(), leases, act)
	w.processTask(context.Background(), task.ID)

	if act.callCount() != 0 {
		t.Errorf("activity calls = %d, want 0 (lease held elsewhere)", act.callCount())
	}
	if got := store.status(task.ID); got != domain.StatusPending {
		t.Errorf("status = %s, want PENDING untouched", got)
	}
}

func TestProcessTaskStealsExpiredLease(t *testing.T) {
	task := domain.NewTask("circuit")
	store := newMemStore(task)
	leases := newMemLeases()
	// lease умершего воркера с истёкшим сроком
	leases.mu.Lock()
	leases.leases[task.ID] = lease{holder: "dead-worker", expiresAt: time.Now().Add(-time.Minute)}
	leases.mu.Unlock()

	act := &instantActivity{}
	w := newWorker(store, newMemHistory(), leases, act)
	w.processTask(context.Background(), task.ID)

	if got := store.status(task.ID); got != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED after steal", got)
	}
}

func TestCancelInstanceRoutesToRunning(t *testing.T) {
	task := domain.NewTask("circuit")
	store := newMemStore(task)
	act := &blockingActivity{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	w := newWorker(store, newMemHistory(), newMemLeases(), act)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.processTask(context.Background(), task.ID)
	}()

	select {
	case <-act.started:
	case <-time.After(5 * time.Second):
		t.Fatal("activity never started")
	}

	if !w.cancelInstance(task.ID) {
		t.Fatal("cancelInstance: instance not found in running registry")
	}
	<-done

	if got := store.status(task.ID); got != domain.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got)
	}
}

func TestCancelInstanceUnknownIsNoop(t *testing.T) {
	w := newWorker(newMemStore(), newMemHistory(), newMemLeases(), &instantActivity{})
	if w.cancelInstance(uuid.New()) {
		t.Error("cancelInstance returned true for unknown instance")
	}
}

func TestPollPicksUpPendingTasks(t *testing.T) {
	first := domain.NewTask("c1")
	second := domain.NewTask("c2")
	finished := domain.NewTask("c3")
	finished.MarkCompleted(domain.Histogram{"0": 1})

	store := newMemStore(first, second, finished)
	act := &instantActivity{}
	w := newWorker(store, newMemHistory(), newMemLeases(), act)

	w.poll(context.Background())

	if got := store.status(first.ID); got != domain.StatusCompleted {
		t.Errorf("first task status = %s, want COMPLETED", got)
	}
	if got := store.status(second.ID); got != domain.StatusCompleted {
		t.Errorf("second task status = %s, want COMPLETED", got)
	}
	if act.callCount() != 2 {
		t.Errorf("activity calls = %d, want 2 (finished task skipped)", act.callCount())
	}
}

func TestStartStopPollingOnly(t *testing.T) {
	task := domain.NewTask("circuit")
	store := newMemStore(task)
	act := &instantActivity{}

	w := New(Config{
		Tasks:        store,
		History:      newMemHistory(),
		Leases:       newMemLeases(),
		Activity:     act,
		Holder:       "test-worker",
		PollInterval: 10 * time.Millisecond,
		Logger:       discardLogger(),
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for store.status(task.ID) != domain.StatusCompleted {
		select {
		case <-deadline:
			t.Fatal("task never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	w.Stop()
	if !w.IsStopped() {
		t.Error("IsStopped() = false after Stop")
	}
}

func TestHolderDefaultsToUniqueID(t *testing.T) {
	a := New(Config{Logger: discardLogger()})
	b := New(Config{Logger: discardLogger()})
	if a.Holder() == "" || a.Holder() == b.Holder() {
		t.Errorf("holders must be unique and non-empty: %q vs %q", a.Holder(), b.Holder())
	}
}
