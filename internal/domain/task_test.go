package domain

import (
	"testing"
)

func TestNewTask(t *testing.T) {
	task := NewTask("OPENQASM 3.0;")

	if task.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", task.Status)
	}
	if task.Circuit != "OPENQASM 3.0;" {
		t.Error("circuit should be preserved")
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
	if task.WorkflowID() != task.ID {
		t.Error("workflow id should equal task id")
	}
}

func TestNewTaskDistinctIDs(t *testing.T) {
	// повторный submit той же схемы — всегда новый инстанс
	a := NewTask("same circuit")
	b := NewTask("same circuit")

	if a.ID == b.ID {
		t.Error("tasks for the same circuit must get distinct ids")
	}
}

func TestTaskMarkCompleted(t *testing.T) {
	task := NewTask("circuit")
	task.MarkRunning()
	task.Error = "stale error"

	task.MarkCompleted(Histogram{"00": 512, "11": 512})

	if task.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", task.Status)
	}
	if task.Result.Shots() != 1024 {
		t.Errorf("expected 1024 shots in result, got %d", task.Result.Shots())
	}
	if task.Error != "" {
		t.Error("completed task must not carry an error")
	}
	if !task.IsFinished() {
		t.Error("completed task should be finished")
	}
}

func TestTaskMarkFailed(t *testing.T) {
	task := NewTask("circuit")
	task.MarkRunning()
	task.Result = Histogram{"0": 1}

	task.MarkFailed("boom")

	if task.Status != StatusFailed {
		t.Errorf("expected FAILED, got %s", task.Status)
	}
	if task.Error != "boom" {
		t.Errorf("expected error text, got %q", task.Error)
	}
	if task.Result != nil {
		t.Error("failed task must not carry a result")
	}
}

func TestTaskMarkCancelled(t *testing.T) {
	task := NewTask("circuit")
	task.MarkRunning()
	task.Result = Histogram{"0": 1}
	task.Error = "stale"

	task.MarkCancelled()

	if task.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", task.Status)
	}
	if task.Result != nil || task.Error != "" {
		t.Error("cancelled task must carry neither result nor error")
	}
}

func TestHistogramShots(t *testing.T) {
	if got := (Histogram{}).Shots(); got != 0 {
		t.Errorf("empty histogram: expected 0, got %d", got)
	}
	h := Histogram{"000": 100, "111": 900, "010": 24}
	if got := h.Shots(); got != 1024 {
		t.Errorf("expected 1024, got %d", got)
	}
}
