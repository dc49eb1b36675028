package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/repo"
)

// TaskStore — операции Task Store, нужные gateway.
// Реализуется repo.TaskRepo.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, upd repo.StatusUpdate) error
	List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Publisher — публикация событий жизненного цикла задач.
// Реализуется mq.Publisher; nil допустим (polling-only режим).
type Publisher interface {
	PublishTaskSubmitted(ctx context.Context, taskID uuid.UUID) error
	PublishTaskCancel(ctx context.Context, taskID uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks     TaskStore
	publisher Publisher
	logger    *slog.Logger

	// health checks
	dbPing         func(ctx context.Context) error
	queueConnected func() bool
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks     TaskStore
	Publisher Publisher
	Logger    *slog.Logger

	// DBPing — проверка доступности Task Store для /healthz.
	DBPing func(ctx context.Context) error

	// QueueConnected — проверка соединения с брокером для /healthz.
	QueueConnected func() bool
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tasks:          cfg.Tasks,
		publisher:      cfg.Publisher,
		logger:         logger,
		dbPing:         cfg.DBPing,
		queueConnected: cfg.QueueConnected,
	}
}
