package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Quanta/internal/mq"
)

// handleTaskSubmitted — обработчик сообщений tasks.submitted.
//
// Claim может не состояться (lease у другого воркера, задача уже
// терминальна) — это не ошибка обработки: сообщение подтверждается,
// незавершённые инстансы в любом случае подберёт orphan-свип.
func (w *Worker) handleTaskSubmitted(ctx context.Context, msg *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskSubmittedPayload](&msg.Message)
	if err != nil {
		return fmt.Errorf("parse task.submitted payload: %w", err)
	}

	w.logger.Debug("task submitted message received", "task_id", payload.TaskID)
	w.processTask(ctx, payload.TaskID)
	return nil
}

// handleSignal — обработчик fanout-сигналов.
//
// Сигнал отмены получает каждый воркер; действует только тот, кто
// исполняет инстанс. Для остальных (и для ещё не подхваченных задач)
// сигнал пустой — отмену PENDING-задачи Gateway уже записал в Task
// Store, а инстанс увидит её при markRunning.
func (w *Worker) handleSignal(_ context.Context, msg *mq.Delivery) error {
	switch msg.Message.Type {
	case mq.MessageTypeTaskCancel:
		payload, err := mq.ParsePayload[mq.TaskCancelPayload](&msg.Message)
		if err != nil {
			return fmt.Errorf("parse task.cancel payload: %w", err)
		}
		if w.cancelInstance(payload.TaskID) {
			w.logger.Info("cancel signal delivered to running instance", "task_id", payload.TaskID)
		} else {
			w.logger.Debug("cancel signal ignored, instance not running here", "task_id", payload.TaskID)
		}
		return nil

	default:
		w.logger.Debug("ignoring unknown signal", "type", msg.Message.Type)
		return nil
	}
}
