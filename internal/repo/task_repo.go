package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Quanta/internal/domain"
)

// MaxListLimit — верхняя граница limit при листинге задач.
const MaxListLimit = 100

// DefaultListLimit — limit по умолчанию.
const DefaultListLimit = 50

// TaskRepo — репозиторий для работы с tasks.
//
// Единственный мутирующий примитив после создания — условное обновление
// UpdateStatus с precondition-проверкой текущего статуса. Это исключает
// lost update между возобновлённым workflow-инстансом и отставшей
// записью предыдущего владельца.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новую задачу.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, status, circuit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Status,
		task.Circuit,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает задачу по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, status, circuit, result, error, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// StatusUpdate — данные условного перехода статуса.
type StatusUpdate struct {
	// To — целевой статус.
	To domain.TaskStatus

	// From — допустимые текущие статусы (precondition).
	From []domain.TaskStatus

	// Result — гистограмма (только для COMPLETED).
	Result domain.Histogram

	// Error — текст ошибки (только для FAILED).
	Error string
}

// UpdateStatus атомарно переводит задачу в новый статус, если текущий
// входит в upd.From.
//
// Возвращает:
//   - nil — переход применён;
//   - ErrConflict — задача существует, но статус не прошёл precondition
//     (повторное применение терминального перехода после resume);
//   - ErrNotFound — задачи нет (например, удалена между cancel и записью).
func (r *TaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) error {
	var resultJSON any
	if upd.Result != nil {
		data, err := json.Marshal(upd.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = data
	}

	from := make([]string, len(upd.From))
	for i, s := range upd.From {
		from[i] = string(s)
	}

	query := `
		UPDATE tasks
		SET status = $2, result = $3, error = $4, updated_at = now()
		WHERE id = $1 AND status = ANY($5)
	`
	result, err := r.pool.Exec(ctx, query,
		id,
		upd.To,
		resultJSON,
		nullString(upd.Error),
		from,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Различаем "нет записи" и "precondition не прошёл".
		var exists bool
		err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check task exists: %w", err)
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	}
	return nil
}

// TaskFilter — параметры листинга задач.
type TaskFilter struct {
	// Status — фильтр по статусу (пустой — без фильтра).
	Status domain.TaskStatus

	// Limit — размер страницы (clamped в [1, MaxListLimit]).
	Limit int

	// Offset — смещение (отрицательное трактуется как 0).
	Offset int
}

// normalize приводит limit/offset к допустимым границам.
func (f *TaskFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// List возвращает страницу задач и общее количество под фильтром.
//
// Сортировка created_at DESC, id DESC — стабильна между страницами
// даже при совпадающих timestamp'ах.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.Task, int, error) {
	filter.normalize()

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
	`, nullString(string(filter.Status))).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `
		SELECT id, status, circuit, result, error, created_at, updated_at
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTaskFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, total, rows.Err()
}

// ListUnfinished возвращает задачи в нетерминальных статусах,
// отсортированные от старых к новым. Используется orphan-свипером
// воркера как polling fallback.
func (r *TaskRepo) ListUnfinished(ctx context.Context, limit int) ([]domain.Task, error) {
	query := `
		SELECT id, status, circuit, result, error, created_at, updated_at
		FROM tasks
		WHERE status IN ('PENDING', 'RUNNING')
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unfinished tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Delete удаляет задачу вместе с историей workflow и lease.
// История и lease привязаны FK с каскадом, удаление атомарно.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var resultJSON []byte
	var taskError *string

	err := row.Scan(
		&task.ID,
		&task.Status,
		&task.Circuit,
		&resultJSON,
		&taskError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &task.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if taskError != nil {
		task.Error = *taskError
	}

	return &task, nil
}

func scanTaskFromRows(rows pgx.Rows) (*domain.Task, error) {
	var task domain.Task
	var resultJSON []byte
	var taskError *string

	err := rows.Scan(
		&task.ID,
		&task.Status,
		&task.Circuit,
		&resultJSON,
		&taskError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &task.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if taskError != nil {
		task.Error = *taskError
	}

	return &task, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
