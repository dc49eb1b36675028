package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/repo"
	"github.com/shaiso/Quanta/internal/telemetry"
)

// ErrOwnershipLost — другая инкарнация инстанса успела записать
// событие с тем же seq. Текущая инкарнация должна остановиться.
var ErrOwnershipLost = errors.New("workflow ownership lost")

// TaskStore — операции над задачами, нужные инстансу.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, upd repo.StatusUpdate) error
}

// HistoryStore — durable-история инстанса.
type HistoryStore interface {
	Append(ctx context.Context, event *domain.HistoryEvent) error
	Load(ctx context.Context, workflowID uuid.UUID) ([]domain.HistoryEvent, error)
}

// Activity исполняет схему задачи.
type Activity interface {
	Execute(ctx context.Context, circuit string) (domain.Histogram, error)
}

// Instance — одна инкарнация workflow-инстанса задачи.
// Не переиспользуется: на каждый claim создаётся новый Instance.
type Instance struct {
	id       uuid.UUID
	tasks    TaskStore
	history  HistoryStore
	activity Activity
	policy   domain.RetryPolicy
	logger   *slog.Logger

	cancelOnce sync.Once
	cancelCh   chan struct{}
}

// NewInstance создаёт инкарнацию инстанса для задачи id.
func NewInstance(id uuid.UUID, tasks TaskStore, history HistoryStore, activity Activity, policy domain.RetryPolicy, logger *slog.Logger) *Instance {
	return &Instance{
		id:       id,
		tasks:    tasks,
		history:  history,
		activity: activity,
		policy:   policy,
		logger:   telemetry.WithWorkflowID(logger, id.String()),
		cancelCh: make(chan struct{}),
	}
}

// Cancel запрашивает отмену инстанса. Идемпотентен; действует в
// ближайшей точке прерывания (перед попыткой, во время исполнения,
// в backoff-ожидании).
func (i *Instance) Cancel() {
	i.cancelOnce.Do(func() { close(i.cancelCh) })
}

func (i *Instance) cancelRequested() bool {
	select {
	case <-i.cancelCh:
		return true
	default:
		return false
	}
}

// replayState — состояние, восстановленное из истории.
type replayState struct {
	nextSeq  int
	started  bool
	attempts int
	result   domain.Histogram
	// completed: activity.completed записан — исполнять нельзя,
	// можно только дописать результат в Task Store.
	completed bool
	cancelled bool
	finished  bool
}

func replay(events []domain.HistoryEvent) (*replayState, error) {
	st := &replayState{nextSeq: 1}
	for _, e := range events {
		st.nextSeq = e.Seq + 1
		switch e.Type {
		case domain.EventWorkflowStarted:
			st.started = true
		case domain.EventActivityFailed:
			st.attempts++
		case domain.EventActivityCompleted:
			payload, err := domain.DecodePayload[domain.ActivityCompletedPayload](&e)
			if err != nil {
				return nil, fmt.Errorf("decode activity.completed: %w", err)
			}
			st.completed = true
			st.result = payload.Result
		case domain.EventWorkflowCancelled:
			st.cancelled = true
		case domain.EventWorkflowFinished:
			st.finished = true
		}
	}
	return st, nil
}

// Run выполняет инстанс до терминального статуса или до прерывания.
//
// Возвращает достигнутый терминальный статус задачи. Пустой статус
// с ошибкой означает, что инстанс прерван (остановка воркера, потеря
// ownership) и будет довыполнен другой инкарнацией.
func (i *Instance) Run(ctx context.Context) (domain.TaskStatus, error) {
	events, err := i.history.Load(ctx, i.id)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	st, err := replay(events)
	if err != nil {
		return "", err
	}

	if st.finished {
		i.logger.Debug("workflow already finished, nothing to do")
		return "", nil
	}
	if len(events) > 0 {
		telemetry.WorkflowsResumed.Inc()
		i.logger.Info("resuming workflow from history",
			"events", len(events),
			"attempts", st.attempts,
			"activity_completed", st.completed,
		)
	}

	task, err := i.tasks.GetByID(ctx, i.id)
	if errors.Is(err, repo.ErrNotFound) {
		i.logger.Warn("task deleted, dropping workflow")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load task: %w", err)
	}

	// Статус уже терминальный (например, отмена до старта или запись
	// предыдущей инкарнации): осталось закрыть историю.
	if task.IsFinished() {
		if err := i.appendFinished(ctx, st, task.Status); err != nil {
			return "", err
		}
		return task.Status, nil
	}

	if !st.started {
		if err := i.append(ctx, st, domain.EventWorkflowStarted, 0, nil); err != nil {
			return "", err
		}
	}

	if task.Status == domain.StatusPending {
		status, done, err := i.markRunning(ctx, st)
		if done || err != nil {
			return status, err
		}
	}

	// Replay: результат уже есть, повторное исполнение запрещено.
	if st.completed {
		return i.complete(ctx, st, st.result)
	}

	return i.execute(ctx, st, task.Circuit)
}

// markRunning переводит PENDING → RUNNING. done=true означает, что
// инстанс уже завершён (гонка с отменой) и исполнять нечего.
func (i *Instance) markRunning(ctx context.Context, st *replayState) (domain.TaskStatus, bool, error) {
	err := i.tasks.UpdateStatus(ctx, i.id, repo.StatusUpdate{
		To:   domain.StatusRunning,
		From: []domain.TaskStatus{domain.StatusPending},
	})
	switch {
	case err == nil:
		return "", false, nil

	case errors.Is(err, repo.ErrConflict):
		// Кто-то успел сменить статус: чаще всего это отмена
		// PENDING-задачи между публикацией и claim'ом.
		task, err := i.tasks.GetByID(ctx, i.id)
		if errors.Is(err, repo.ErrNotFound) {
			return "", true, nil
		}
		if err != nil {
			return "", true, fmt.Errorf("reload task: %w", err)
		}
		if task.IsFinished() {
			if task.Status == domain.StatusCancelled && !st.cancelled {
				if err := i.append(ctx, st, domain.EventWorkflowCancelled, 0, nil); err != nil {
					return "", true, err
				}
			}
			if err := i.appendFinished(ctx, st, task.Status); err != nil {
				return "", true, err
			}
			return task.Status, true, nil
		}
		// RUNNING — предыдущая инкарнация успела до падения.
		return "", false, nil

	case errors.Is(err, repo.ErrNotFound):
		return "", true, nil

	default:
		return "", true, fmt.Errorf("mark running: %w", err)
	}
}

// execute — цикл попыток activity с retry-политикой.
func (i *Instance) execute(ctx context.Context, st *replayState, circuit string) (domain.TaskStatus, error) {
	attempt := st.attempts + 1
	loopStart := time.Now()

	for {
		if i.cancelRequested() {
			return i.cancel(ctx, st)
		}

		result, err := i.runActivity(ctx, circuit)
		if err == nil {
			payload := domain.ActivityCompletedPayload{Result: result}
			if err := i.append(ctx, st, domain.EventActivityCompleted, attempt, payload); err != nil {
				return "", err
			}
			return i.complete(ctx, st, result)
		}

		if errors.Is(err, context.Canceled) {
			if i.cancelRequested() {
				return i.cancel(ctx, st)
			}
			// Остановка воркера: инстанс доделает следующая инкарнация.
			return "", err
		}

		retryable := domain.IsRetryable(err)
		failPayload := domain.ActivityFailedPayload{Error: err.Error(), Retryable: retryable}
		if appendErr := i.append(ctx, st, domain.EventActivityFailed, attempt, failPayload); appendErr != nil {
			return "", appendErr
		}

		if !retryable {
			i.logger.Info("activity failed permanently", "attempt", attempt, "error", err)
			return i.fail(ctx, st, err.Error())
		}
		if !i.policy.CanRetry(attempt, time.Since(loopStart)) {
			i.logger.Warn("retry budget exhausted", "attempts", attempt, "error", err)
			return i.fail(ctx, st, fmt.Sprintf("failed after %d attempts: %s", attempt, err))
		}

		delay := i.policy.Backoff(attempt)
		i.logger.Info("activity failed, retrying",
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-i.cancelCh:
			return i.cancel(ctx, st)
		case <-time.After(delay):
		}
		attempt++
	}
}

// runActivity исполняет activity, прерывая её по сигналу отмены.
func (i *Instance) runActivity(ctx context.Context, circuit string) (domain.Histogram, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-i.cancelCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	return i.activity.Execute(runCtx, circuit)
}

// complete записывает COMPLETED в Task Store и закрывает историю.
func (i *Instance) complete(ctx context.Context, st *replayState, result domain.Histogram) (domain.TaskStatus, error) {
	return i.writeTerminal(ctx, st, repo.StatusUpdate{
		To:     domain.StatusCompleted,
		From:   []domain.TaskStatus{domain.StatusRunning},
		Result: result,
	})
}

// fail записывает FAILED в Task Store и закрывает историю.
func (i *Instance) fail(ctx context.Context, st *replayState, errText string) (domain.TaskStatus, error) {
	return i.writeTerminal(ctx, st, repo.StatusUpdate{
		To:    domain.StatusFailed,
		From:  []domain.TaskStatus{domain.StatusRunning},
		Error: errText,
	})
}

// cancel фиксирует отмену: частичный результат отбрасывается.
func (i *Instance) cancel(ctx context.Context, st *replayState) (domain.TaskStatus, error) {
	if !st.cancelled {
		if err := i.append(ctx, st, domain.EventWorkflowCancelled, 0, nil); err != nil {
			return "", err
		}
		st.cancelled = true
	}
	return i.writeTerminal(ctx, st, repo.StatusUpdate{
		To:   domain.StatusCancelled,
		From: []domain.TaskStatus{domain.StatusPending, domain.StatusRunning},
	})
}

// writeTerminal — условная запись терминального статуса.
//
// ErrConflict не ошибка: статус сменил кто-то другой (отмена против
// результата), принимаем фактический. ErrNotFound — задача удалена,
// историю не трогаем.
func (i *Instance) writeTerminal(ctx context.Context, st *replayState, upd repo.StatusUpdate) (domain.TaskStatus, error) {
	err := i.tasks.UpdateStatus(ctx, i.id, upd)
	switch {
	case err == nil:
		if err := i.appendFinished(ctx, st, upd.To); err != nil {
			return "", err
		}
		i.logger.Info("workflow finished", "status", upd.To)
		return upd.To, nil

	case errors.Is(err, repo.ErrConflict):
		task, getErr := i.tasks.GetByID(ctx, i.id)
		if errors.Is(getErr, repo.ErrNotFound) {
			return "", nil
		}
		if getErr != nil {
			return "", fmt.Errorf("reload task: %w", getErr)
		}
		i.logger.Info("terminal write lost the race, accepting actual status",
			"wanted", upd.To,
			"actual", task.Status,
		)
		if !task.IsFinished() {
			// Precondition не прошёл, но статус нетерминальный —
			// состояние неконсистентно, пусть разбирается resume.
			return "", fmt.Errorf("unexpected non-terminal status %s after conflict", task.Status)
		}
		if err := i.appendFinished(ctx, st, task.Status); err != nil {
			return "", err
		}
		return task.Status, nil

	case errors.Is(err, repo.ErrNotFound):
		i.logger.Warn("task deleted before terminal write")
		return "", nil

	default:
		return "", fmt.Errorf("write terminal status: %w", err)
	}
}

func (i *Instance) appendFinished(ctx context.Context, st *replayState, status domain.TaskStatus) error {
	if st.finished {
		return nil
	}
	payload := domain.WorkflowFinishedPayload{Status: status}
	if err := i.append(ctx, st, domain.EventWorkflowFinished, 0, payload); err != nil {
		return err
	}
	st.finished = true
	return nil
}

// append пишет событие с очередным seq. ErrAlreadyExists означает,
// что событие с этим seq записала другая инкарнация; ErrNotFound —
// что задача удалена и история ушла каскадом вместе с ней.
func (i *Instance) append(ctx context.Context, st *replayState, eventType domain.EventType, attempt int, payload any) error {
	event, err := domain.NewHistoryEvent(i.id, st.nextSeq, eventType, attempt, payload)
	if err != nil {
		return fmt.Errorf("build event %s: %w", eventType, err)
	}

	if err := i.history.Append(ctx, event); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			i.logger.Warn("history append lost to another incarnation", "seq", st.nextSeq, "type", eventType)
			return fmt.Errorf("%w: seq %d taken", ErrOwnershipLost, st.nextSeq)
		}
		return fmt.Errorf("append event %s: %w", eventType, err)
	}
	st.nextSeq++
	return nil
}
