package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/repo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type memTasks struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *memTasks) Create(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return repo.ErrAlreadyExists
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memTasks) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memTasks) UpdateStatus(_ context.Context, id uuid.UUID, upd repo.StatusUpdate) error {
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

func (m *memTasks) List(_ context.Context, filter repo.TaskFilter) ([]domain.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, len(out), nil
}

func (m *memTasks) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

type stubPublisher struct {
	mu        sync.Mutex
	submitted []uuid.UUID
	cancelled []uuid.UUID
	failWith  error
}

func (p *stubPublisher) PublishTaskSubmitted(_ context.Context, taskID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.submitted = append(p.submitted, taskID)
	return nil
}

func (p *stubPublisher) PublishTaskCancel(_ context.Context, taskID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.cancelled = append(p.cancelled, taskID)
	return nil
}

func newTestServer(tasks *memTasks, pub Publisher) *httptest.Server {
	h := NewHandler(Config{
		Tasks:     tasks,
		Publisher: pub,
		Logger:    discardLogger(),
		DBPing:    func(context.Context) error { return nil },
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func submitCircuit(t *testing.T, server *httptest.Server, circuit string) (*http.Response, TaskResponse) {
	t.Helper()
	body, _ := json.Marshal(SubmitTaskRequest{Circuit: circuit})
	resp, err := http.Post(server.URL+"/api/v1/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tasks: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data TaskResponse `json:"data"`
	}
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, envelope.Data
}

// --- tests ---

func TestSubmitTask(t *testing.T) {
	tasks := newMemTasks()
	pub := &stubPublisher{}
	server := newTestServer(tasks, pub)
	defer server.Close()

	resp, created := submitCircuit(t, server, "OPENQASM 3.0; qubit q; bit c; h q; c = measure q;")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if created.Status != domain.StatusPending {
		t.Errorf("task status = %s, want PENDING", created.Status)
	}
	if created.ID == uuid.Nil {
		t.Error("task id must be set")
	}
	if len(pub.submitted) != 1 || pub.submitted[0] != created.ID {
		t.Errorf("published = %v, want [%s]", pub.submitted, created.ID)
	}
}

func TestSubmitTaskWireField(t *testing.T) {
	tasks := newMemTasks()
	server := newTestServer(tasks, &stubPublisher{})
	defer server.Close()

	// схема передаётся в поле "qc"
	body := `{"qc": "OPENQASM 3.0; qubit q; bit c; h q; c = measure q;"}`
	resp, err := http.Post(server.URL+"/api/v1/tasks", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
}

func TestSubmitTaskDuplicatesGetDistinctIDs(t *testing.T) {
	server := newTestServer(newMemTasks(), &stubPublisher{})
	defer server.Close()

	circuit := "OPENQASM 3.0; qubit q; bit c; h q; c = measure q;"
	_, first := submitCircuit(t, server, circuit)
	_, second := submitCircuit(t, server, circuit)

	if first.ID == second.ID {
		t.Errorf("same circuit produced same task id %s", first.ID)
	}
}

func TestSubmitTaskValidation(t *testing.T) {
	server := newTestServer(newMemTasks(), &stubPublisher{})
	defer server.Close()

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "not json at all"},
		{"empty circuit", `{"qc": ""}`},
		{"whitespace circuit", `{"qc": "   "}`},
		{"wrong field name", `{"circuit": "OPENQASM 3.0;"}`},
		{"oversized circuit", fmt.Sprintf(`{"qc": %q}`, strings.Repeat("x", maxCircuitBytes+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/v1/tasks", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSubmitTaskPublishFailureRollsBack(t *testing.T) {
	tasks := newMemTasks()
	pub := &stubPublisher{failWith: errors.New("broker down")}
	server := newTestServer(tasks, pub)
	defer server.Close()

	resp, _ := submitCircuit(t, server, "OPENQASM 3.0; qubit q; bit c; h q; c = measure q;")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	// запись не должна остаться PENDING
	all, _, _ := tasks.List(context.Background(), repo.TaskFilter{})
	if len(all) != 1 {
		t.Fatalf("tasks = %d, want 1", len(all))
	}
	if all[0].Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED after rollback", all[0].Status)
	}
}

func TestGetTask(t *testing.T) {
	tasks := newMemTasks()
	server := newTestServer(tasks, &stubPublisher{})
	defer server.Close()

	task := domain.NewTask("circuit")
	task.MarkRunning()
	task.MarkCompleted(domain.Histogram{"00": 512, "11": 512})
	if err := tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("setup: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/v1/tasks/" + task.ID.String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var envelope struct {
		Data TaskResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", envelope.Data.Status)
	}
	if envelope.Data.Result.Shots() != 1024 {
		t.Errorf("result shots = %d, want 1024", envelope.Data.Result.Shots())
	}
}

func TestGetTaskNotFound(t *testing.T) {
	server := newTestServer(newMemTasks(), &stubPublisher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/tasks/" + uuid.New().String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetTaskInvalidID(t *testing.T) {
	server := newTestServer(newMemTasks(), &stubPublisher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/tasks/not-a-uuid")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListTasksFiltersByStatus(t *testing.T) {
	tasks := newMemTasks()
	server := newTestServer(tasks, &stubPublisher{})
	defer server.Close()

	pending := domain.NewTask("c1")
	failed := domain.NewTask("c2")
	failed.MarkRunning()
	failed.MarkFailed("boom")
	tasks.Create(context.Background(), pending)
	tasks.Create(context.Background(), failed)

	resp, err := http.Get(server.URL + "/api/v1/tasks?status=FAILED")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  []TaskListItem `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Total != 1 || len(envelope.Data) != 1 {
		t.Fatalf("total = %d, items = %d, want 1/1", envelope.Total, len(envelope.Data))
	}
	if envelope.Data[0].ID != failed.ID {
		t.Errorf("listed id = %s, want %s", envelope.Data[0].ID, failed.ID)
	}
}

func TestListTasksInvalidStatus(t *testing.T) {
	server := newTestServer(newMemTasks(), &stubPublisher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/tasks?status=BOGUS")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteTaskCancelsFirst(t *testing.T) {
	tasks := newMemTasks()
	pub := &stubPublisher{}
	server := newTestServer(tasks, pub)
	defer server.Close()

	task := domain.NewTask("circuit")
	task.MarkRunning()
	tasks.Create(context.Background(), task)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/tasks/"+task.ID.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	// сигнал отмены разослан, запись удалена
	if len(pub.cancelled) != 1 || pub.cancelled[0] != task.ID {
		t.Errorf("cancelled = %v, want [%s]", pub.cancelled, task.ID)
	}
	if _, err := tasks.GetByID(context.Background(), task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("task still present after delete: %v", err)
	}
}

func TestDeleteTerminalTaskSkipsCancel(t *testing.T) {
	tasks := newMemTasks()
	pub := &stubPublisher{}
	server := newTestServer(tasks, pub)
	defer server.Close()

	task := domain.NewTask("circuit")
	task.MarkRunning()
	task.MarkCompleted(domain.Histogram{"0": 1})
	tasks.Create(context.Background(), task)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/tasks/"+task.ID.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if len(pub.cancelled) != 0 {
		t.Errorf("cancel published for terminal task: %v", pub.cancelled)
	}
}

func TestDeleteTaskNotFound(t *testing.T) {
	server := newTestServer(newMemTasks(), &stubPublisher{})
	defer server.Close()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/tasks/"+uuid.New().String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(Config{
		Tasks:          newMemTasks(),
		Logger:         discardLogger(),
		DBPing:         func(context.Context) error { return nil },
		QueueConnected: func() bool { return false },
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	// БД доступна, очередь нет: degraded, но 200
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("health status = %q, want degraded", health.Status)
	}
	if health.Checks["queue"] != "down" {
		t.Errorf("queue check = %q, want down", health.Checks["queue"])
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	h := NewHandler(Config{
		Tasks:          newMemTasks(),
		Logger:         discardLogger(),
		DBPing:         func(context.Context) error { return errors.New("connection refused") },
		QueueConnected: func() bool { return true },
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
