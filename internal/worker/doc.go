// Package worker — пул исполнителей workflow-инстансов.
//
// Воркер подхватывает задачи двумя путями:
//   - event-driven: consumer очереди tasks.submitted;
//   - polling fallback: периодический обход незавершённых задач в БД
//     (подбирает осиротевшие инстансы упавших воркеров и задачи,
//     опубликованные пока брокер был недоступен).
//
// Перед исполнением воркер захватывает lease на инстанс и продлевает
// его heartbeat'ом; инстанс без живого lease может забрать любой
// другой воркер. Сигналы отмены приходят через fanout-обменник на
// эксклюзивную очередь каждого воркера; действует только тот, кто
// реально исполняет инстанс.
//
// Воркеры масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
package worker
