// Package activity — исполнение квантовой схемы как единственный
// side effect воркфлоу. Оборачивает симулятор таймаутом и
// транслирует его ошибки в доменные (retryable / non-retryable).
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/sim"
	"github.com/shaiso/Quanta/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultShots   = 1024
	DefaultTimeout = 5 * time.Minute
)

// Backend исполняет схему и возвращает гистограмму измерений.
type Backend interface {
	Run(ctx context.Context, circuit string, shots int) (domain.Histogram, error)
}

// Config — конфигурация Runner.
type Config struct {
	// Shots — число измерений на запуск.
	Shots int

	// Timeout — предельное время одного исполнения.
	Timeout time.Duration
}

// ConfigFromEnv читает конфигурацию из переменных окружения
// QUANTA_SHOTS и QUANTA_EXEC_TIMEOUT.
func ConfigFromEnv() Config {
	cfg := Config{
		Shots:   DefaultShots,
		Timeout: DefaultTimeout,
	}

	if v := os.Getenv("QUANTA_SHOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Shots = n
		}
	}
	if v := os.Getenv("QUANTA_EXEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// Runner — активность «исполнить схему».
type Runner struct {
	backend Backend
	logger  *slog.Logger
	shots   int
	timeout time.Duration
}

// NewRunner создаёт Runner поверх backend.
func NewRunner(backend Backend, logger *slog.Logger, cfg Config) *Runner {
	shots := cfg.Shots
	if shots <= 0 {
		shots = DefaultShots
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Runner{
		backend: backend,
		logger:  logger,
		shots:   shots,
		timeout: timeout,
	}
}

// Execute нормализует и исполняет схему.
//
// Классификация ошибок:
//   - детерминированные ошибки симулятора → domain.ErrValidation
//     (повтор бессмыслен);
//   - истечение таймаута исполнения → domain.ErrTransient;
//   - отмена родительского контекста → context.Canceled как есть;
//   - всё остальное → domain.ErrTransient.
func (r *Runner) Execute(ctx context.Context, circuit string) (domain.Histogram, error) {
	normalized := Normalize(circuit)

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	hist, err := r.backend.Run(execCtx, normalized, r.shots)
	elapsed := time.Since(started)

	if err != nil {
		translated := r.translate(ctx, err, elapsed)
		switch {
		case errors.Is(translated, domain.ErrValidation):
			telemetry.ActivityAttempts.WithLabelValues("validation").Inc()
		case errors.Is(translated, domain.ErrTransient):
			telemetry.ActivityAttempts.WithLabelValues("transient").Inc()
		}
		return nil, translated
	}

	telemetry.ActivityAttempts.WithLabelValues("ok").Inc()
	telemetry.ExecutionDuration.Observe(elapsed.Seconds())

	r.logger.Debug("circuit executed",
		"shots", r.shots,
		"outcomes", len(hist),
		"elapsed", elapsed,
	)
	return hist, nil
}

func (r *Runner) translate(ctx context.Context, err error, elapsed time.Duration) error {
	switch {
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		// отмена сверху (cancel воркфлоу или остановка воркера)
		return err

	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: execution exceeded %s", domain.ErrTransient, r.timeout)

	case sim.IsDeterministic(err):
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)

	default:
		r.logger.Warn("execution failed with transient error", "error", err, "elapsed", elapsed)
		return fmt.Errorf("%w: %s", domain.ErrTransient, err)
	}
}
