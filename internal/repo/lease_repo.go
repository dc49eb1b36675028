package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeaseRepo — эксклюзивные lease воркеров на workflow-инстансы.
//
// Взаимное исключение обеспечивается на уровне БД одним upsert'ом:
// захватить lease можно, только если записи нет, она уже наша или её
// срок истёк (владелец умер, не продлив heartbeat). Два воркера никогда
// не выполняют один инстанс одновременно, но hand-off после падения
// владельца возможен.
type LeaseRepo struct {
	pool *pgxpool.Pool
}

// NewLeaseRepo создаёт новый LeaseRepo.
func NewLeaseRepo(pool *pgxpool.Pool) *LeaseRepo {
	return &LeaseRepo{pool: pool}
}

// Acquire пытается захватить lease на инстанс для holder на ttl.
// Возвращает ErrLeaseHeld, если lease держит другой живой воркер,
// и ErrNotFound, если задача уже удалена.
func (r *LeaseRepo) Acquire(ctx context.Context, workflowID uuid.UUID, holder string, ttl time.Duration) error {
	query := `
		INSERT INTO workflow_leases (workflow_id, holder, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (workflow_id) DO UPDATE
		SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE workflow_leases.holder = EXCLUDED.holder
		   OR workflow_leases.expires_at < now()
	`
	result, err := r.pool.Exec(ctx, query, workflowID, holder, ttl)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("acquire lease: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Renew продлевает lease. Возвращает ErrLeaseHeld, если lease уже
// не принадлежит holder (истёк и был перехвачен).
func (r *LeaseRepo) Renew(ctx context.Context, workflowID uuid.UUID, holder string, ttl time.Duration) error {
	query := `
		UPDATE workflow_leases
		SET expires_at = now() + $3
		WHERE workflow_id = $1 AND holder = $2
	`
	result, err := r.pool.Exec(ctx, query, workflowID, holder, ttl)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Release освобождает lease, если он принадлежит holder.
// Чужой или отсутствующий lease — no-op.
func (r *LeaseRepo) Release(ctx context.Context, workflowID uuid.UUID, holder string) error {
	query := `
		DELETE FROM workflow_leases
		WHERE workflow_id = $1 AND holder = $2
	`
	if _, err := r.pool.Exec(ctx, query, workflowID, holder); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// IsHeld проверяет, удерживается ли lease живым воркером.
func (r *LeaseRepo) IsHeld(ctx context.Context, workflowID uuid.UUID) (bool, error) {
	var held bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM workflow_leases
			WHERE workflow_id = $1 AND expires_at >= now()
		)
	`, workflowID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("check lease: %w", err)
	}
	return held, nil
}
