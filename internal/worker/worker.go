package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/mq"
	"github.com/shaiso/Quanta/internal/repo"
	"github.com/shaiso/Quanta/internal/telemetry"
	"github.com/shaiso/Quanta/internal/workflow"
)

// Default configuration values.
const (
	defaultPollInterval  = 10 * time.Second
	defaultBatchSize     = 50
	defaultPrefetch      = 5
	defaultLeaseTTL      = 30 * time.Second
	defaultMaxConcurrent = 4
)

// TaskStore — операции над задачами, нужные воркеру.
// Включает контракт workflow-инстанса плюс выборку для orphan-свипа.
type TaskStore interface {
	workflow.TaskStore
	ListUnfinished(ctx context.Context, limit int) ([]domain.Task, error)
}

// LeaseStore — захват и продление lease на инстансы.
type LeaseStore interface {
	Acquire(ctx context.Context, workflowID uuid.UUID, holder string, ttl time.Duration) error
	Renew(ctx context.Context, workflowID uuid.UUID, holder string, ttl time.Duration) error
	Release(ctx context.Context, workflowID uuid.UUID, holder string) error
}

// Worker исполняет workflow-инстансы задач.
type Worker struct {
	tasks    TaskStore
	history  workflow.HistoryStore
	leases   LeaseStore
	activity workflow.Activity
	policy   domain.RetryPolicy

	conn *mq.Connection

	taskConsumer   *mq.Consumer
	signalConsumer *mq.Consumer

	holder       string
	leaseTTL     time.Duration
	pollInterval time.Duration
	batchSize    int
	sem          chan struct{}

	// running — инстансы, исполняемые этим воркером прямо сейчас.
	// Через него сигналы отмены находят адресата.
	running   map[uuid.UUID]*runningInstance
	runningMu sync.Mutex

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// runningInstance — исполняемый инстанс и способ его прервать.
type runningInstance struct {
	instance *workflow.Instance
	// stop прерывает исполнение без отмены задачи (потеря lease).
	stop context.CancelFunc
}

// Config — конфигурация Worker.
type Config struct {
	// Stores
	Tasks   TaskStore
	History workflow.HistoryStore
	Leases  LeaseStore

	// Activity — исполнитель схем.
	Activity workflow.Activity

	// Retry — политика повторов activity (zero value → default).
	Retry domain.RetryPolicy

	// Conn — соединение с RabbitMQ (nil → polling-only режим).
	Conn *mq.Connection

	// Holder — идентификатор воркера в lease (default: hostname-uuid).
	Holder string

	// LeaseTTL — срок lease; heartbeat продлевает каждые TTL/3.
	LeaseTTL time.Duration

	// PollInterval — интервал orphan-свипа (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество задач за один poll (default: 50).
	BatchSize int

	// MaxConcurrent — параллельно исполняемые инстансы (default: 4).
	MaxConcurrent int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	holder := cfg.Holder
	if holder == "" {
		hostname, _ := os.Hostname()
		holder = fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = domain.DefaultRetryPolicy()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		tasks:        cfg.Tasks,
		history:      cfg.History,
		leases:       cfg.Leases,
		activity:     cfg.Activity,
		policy:       policy,
		conn:         cfg.Conn,
		holder:       holder,
		leaseTTL:     leaseTTL,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		sem:          make(chan struct{}, maxConcurrent),
		running:      make(map[uuid.UUID]*runningInstance),
		logger:       logger.With("holder", holder),
	}
}

// Holder возвращает идентификатор воркера в lease.
func (w *Worker) Holder() string {
	return w.holder
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для tasks.submitted (если есть соединение с брокером)
//   - Consumer сигналов отмены на эксклюзивной очереди
//   - Polling горутину для orphan-свипа
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"lease_ttl", w.leaseTTL,
		"poll_interval", w.pollInterval,
		"max_concurrent", cap(w.sem),
	)

	if w.conn != nil {
		w.taskConsumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksSubmitted),
			Handler:  w.handleTaskSubmitted,
			Prefetch: defaultPrefetch,
		})
		w.signalConsumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Signals: true,
			Handler: w.handleSignal,
		})

		for _, c := range []*mq.Consumer{w.taskConsumer, w.signalConsumer} {
			consumer := c
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("consumer error", "error", err)
				}
			}()
		}
	} else {
		w.logger.Warn("no broker connection, running in polling-only mode")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и дожидается исполняемых инстансов.
// Незавершённые инстансы остаются RUNNING и возобновляются после
// истечения lease другим воркером.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.taskConsumer != nil {
		w.taskConsumer.Stop()
	}
	if w.signalConsumer != nil {
		w.signalConsumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл orphan-свипа.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем задачи, созданные
	// или осиротевшие пока воркеров не было)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл orphan-свипа.
func (w *Worker) poll(ctx context.Context) {
	tasks, err := w.tasks.ListUnfinished(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to list unfinished tasks", "error", err)
		}
		return
	}
	if len(tasks) == 0 {
		return
	}

	w.logger.Debug("poll found unfinished tasks", "count", len(tasks))

	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		w.processTask(ctx, tasks[i].ID)
	}
}

// processTask захватывает lease и исполняет инстанс задачи.
// Занятый чужим lease или уже исполняемый здесь инстанс — no-op.
func (w *Worker) processTask(ctx context.Context, id uuid.UUID) {
	if w.isRunning(id) {
		return
	}

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-w.sem }()

	if err := w.leases.Acquire(ctx, id, w.holder, w.leaseTTL); err != nil {
		switch {
		case errors.Is(err, repo.ErrLeaseHeld):
			// lease у другого живого воркера — нормальная ситуация
			w.logger.Debug("lease held elsewhere", "workflow_id", id)
		case errors.Is(err, repo.ErrNotFound):
			w.logger.Debug("task deleted before claim", "workflow_id", id)
		case ctx.Err() == nil:
			w.logger.Error("failed to acquire lease", "workflow_id", id, "error", err)
		}
		return
	}
	telemetry.WorkflowsClaimed.Inc()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	inst := workflow.NewInstance(id, w.tasks, w.history, w.activity, w.policy, w.logger)
	if !w.register(id, &runningInstance{instance: inst, stop: stop}) {
		return
	}
	defer w.unregister(id)

	heartbeatDone := make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(heartbeatDone)
		w.heartbeat(runCtx, id, stop)
	}()

	status, err := inst.Run(runCtx)
	stop()
	<-heartbeatDone

	switch {
	case err == nil && status != "":
		telemetry.TasksFinished.WithLabelValues(string(status)).Inc()
	case errors.Is(err, context.Canceled):
		w.logger.Info("workflow interrupted, will be resumed", "workflow_id", id)
	case errors.Is(err, workflow.ErrOwnershipLost):
		w.logger.Warn("workflow ownership lost", "workflow_id", id)
	case errors.Is(err, repo.ErrNotFound):
		// задача удалена во время исполнения: история ушла каскадом
		w.logger.Info("task deleted during run", "workflow_id", id)
	case err != nil:
		w.logger.Error("workflow run failed", "workflow_id", id, "error", err)
	}

	// Release на фоновом контексте: ctx воркера мог быть уже отменён.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.leases.Release(releaseCtx, id, w.holder); err != nil {
		w.logger.Warn("failed to release lease", "workflow_id", id, "error", err)
	}
}

// heartbeat продлевает lease, пока инстанс исполняется.
// Потеря lease прерывает исполнение: продолжать без взаимного
// исключения нельзя.
func (w *Worker) heartbeat(ctx context.Context, id uuid.UUID, stop context.CancelFunc) {
	interval := w.leaseTTL / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.leases.Renew(ctx, id, w.holder, w.leaseTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("lease renewal failed, stopping instance",
					"workflow_id", id,
					"error", err,
				)
				stop()
				return
			}
		}
	}
}

// --- running registry ---

func (w *Worker) isRunning(id uuid.UUID) bool {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	_, ok := w.running[id]
	return ok
}

func (w *Worker) register(id uuid.UUID, ri *runningInstance) bool {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	if _, ok := w.running[id]; ok {
		return false
	}
	w.running[id] = ri
	return true
}

func (w *Worker) unregister(id uuid.UUID) {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	delete(w.running, id)
}

// cancelInstance доставляет сигнал отмены исполняемому инстансу.
// Возвращает false, если инстанс не исполняется этим воркером.
func (w *Worker) cancelInstance(id uuid.UUID) bool {
	w.runningMu.Lock()
	ri, ok := w.running[id]
	w.runningMu.Unlock()
	if !ok {
		return false
	}
	ri.instance.Cancel()
	return true
}
