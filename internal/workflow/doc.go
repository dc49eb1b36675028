// Package workflow — durable state machine задачи.
//
// Инстанс воркфлоу 1:1 соответствует задаче и живёт на воркере,
// держащем lease. Каждый шаг сначала фиксируется событием в
// append-only истории и только потом производит side effect
// (запись в Task Store). После падения воркера новая инкарнация
// инстанса перечитывает историю и доделывает только то, чего в ней
// нет: activity с записанным activity.completed никогда не
// выполняется повторно, допускается лишь повтор записи результата.
//
// Все записи в Task Store условные (precondition по текущему
// статусу): проигравшая гонку инкарнация получает ErrConflict и
// принимает фактический статус вместо своего.
package workflow
