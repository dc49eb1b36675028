package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/sim"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubBackend возвращает заранее заданный результат или ошибку.
type stubBackend struct {
	hist domain.Histogram
	err  error

	gotCircuit string
	gotShots   int
}

func (b *stubBackend) Run(ctx context.Context, circuit string, shots int) (domain.Histogram, error) {
	b.gotCircuit = circuit
	b.gotShots = shots
	if b.err != nil {
		return nil, b.err
	}
	return b.hist, nil
}

func TestExecuteSuccess(t *testing.T) {
	backend := &stubBackend{hist: domain.Histogram{"00": 512, "11": 512}}
	r := NewRunner(backend, discardLogger(), Config{Shots: 1024})

	hist, err := r.Execute(context.Background(), "OPENQASM 3.0;\nqubit q;\nbit c;\nh q;\nc = measure q;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if hist.Shots() != 1024 {
		t.Errorf("Shots() = %d, want 1024", hist.Shots())
	}
	if backend.gotShots != 1024 {
		t.Errorf("backend shots = %d, want 1024", backend.gotShots)
	}
}

func TestExecuteNormalizesCircuit(t *testing.T) {
	backend := &stubBackend{hist: domain.Histogram{"0": 1}}
	r := NewRunner(backend, discardLogger(), Config{Shots: 1})

	circuit := "OPENQASM 3.0;\ninclude \"stdgates.inc\";\nqubit q;\nbit c;\nh q;\nc = measure q;"
	if _, err := r.Execute(context.Background(), circuit); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if backend.gotCircuit == circuit {
		t.Error("backend received unnormalized circuit")
	}
	if want := Normalize(circuit); backend.gotCircuit != want {
		t.Errorf("backend circuit:\n%s\nwant:\n%s", backend.gotCircuit, want)
	}
}

func TestExecuteValidationError(t *testing.T) {
	backend := &stubBackend{err: sim.ErrUnknownGate}
	r := NewRunner(backend, discardLogger(), Config{})

	_, err := r.Execute(context.Background(), "whatever")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Execute() error = %v, want domain.ErrValidation", err)
	}
	if domain.IsRetryable(err) {
		t.Error("validation error must not be retryable")
	}
}

func TestExecuteTransientError(t *testing.T) {
	backend := &stubBackend{err: errors.New("out of memory")}
	r := NewRunner(backend, discardLogger(), Config{})

	_, err := r.Execute(context.Background(), "whatever")
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("Execute() error = %v, want domain.ErrTransient", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("transient error must be retryable")
	}
}

func TestExecuteTimeoutIsTransient(t *testing.T) {
	backend := &stubBackend{err: context.DeadlineExceeded}
	r := NewRunner(backend, discardLogger(), Config{Timeout: time.Millisecond})

	_, err := r.Execute(context.Background(), "whatever")
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("Execute() error = %v, want domain.ErrTransient", err)
	}
}

func TestExecuteParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &stubBackend{err: context.Canceled}
	r := NewRunner(backend, discardLogger(), Config{})

	_, err := r.Execute(ctx, "whatever")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, domain.ErrTransient) || errors.Is(err, domain.ErrValidation) {
		t.Errorf("cancellation must not be wrapped as domain error: %v", err)
	}
}

func TestExecuteEndToEnd(t *testing.T) {
	// настоящий симулятор: include-схема исполняется после нормализации
	backend := sim.New(sim.Config{Seed: 42})
	r := NewRunner(backend, discardLogger(), Config{Shots: 256})

	circuit := `OPENQASM 3.0;
include "stdgates.inc";
qubit[2] q;
bit[2] c;
h q[0];
cx q[0], q[1];
c = measure q;
`
	hist, err := r.Execute(context.Background(), circuit)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if hist.Shots() != 256 {
		t.Errorf("Shots() = %d, want 256", hist.Shots())
	}
	for key := range hist {
		if key != "00" && key != "11" {
			t.Errorf("unexpected outcome %q", key)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("QUANTA_SHOTS", "2048")
	t.Setenv("QUANTA_EXEC_TIMEOUT", "90s")

	cfg := ConfigFromEnv()
	if cfg.Shots != 2048 {
		t.Errorf("Shots = %d, want 2048", cfg.Shots)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QUANTA_SHOTS", "")
	t.Setenv("QUANTA_EXEC_TIMEOUT", "not-a-duration")

	cfg := ConfigFromEnv()
	if cfg.Shots != DefaultShots {
		t.Errorf("Shots = %d, want %d", cfg.Shots, DefaultShots)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
}
