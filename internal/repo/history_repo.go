package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Quanta/internal/domain"
)

// HistoryRepo — append-only история workflow-инстансов.
//
// События никогда не обновляются и не удаляются по одному — только
// добавляются и читаются целиком для replay. UNIQUE(workflow_id, seq)
// защищает от двойной записи одного события двумя инкарнациями
// инстанса: проигравшая получает ErrAlreadyExists и перечитывает
// историю. FK на tasks с каскадом не даёт истории пережить задачу:
// append после удаления задачи возвращает ErrNotFound, осиротевших
// событий не остаётся.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Append добавляет событие в историю инстанса.
func (r *HistoryRepo) Append(ctx context.Context, event *domain.HistoryEvent) error {
	query := `
		INSERT INTO workflow_events (workflow_id, seq, type, attempt, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		event.WorkflowID,
		event.Seq,
		event.Type,
		event.Attempt,
		[]byte(event.Payload),
		event.RecordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation: seq занят другой инкарнацией
				return ErrAlreadyExists
			case "23503": // foreign_key_violation: задача удалена
				return ErrNotFound
			}
		}
		return fmt.Errorf("append workflow event: %w", err)
	}
	return nil
}

// Load возвращает все события инстанса в порядке seq.
// Пустая история — не ошибка: инстанс ещё не начинал выполнение.
func (r *HistoryRepo) Load(ctx context.Context, workflowID uuid.UUID) ([]domain.HistoryEvent, error) {
	query := `
		SELECT workflow_id, seq, type, attempt, payload, recorded_at
		FROM workflow_events
		WHERE workflow_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow history: %w", err)
	}
	defer rows.Close()

	var events []domain.HistoryEvent
	for rows.Next() {
		var e domain.HistoryEvent
		var payload []byte
		if err := rows.Scan(&e.WorkflowID, &e.Seq, &e.Type, &e.Attempt, &payload, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}
