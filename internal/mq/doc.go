// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - task.submitted — новая задача ожидает выполнения
//   - task.cancel    — сигнал отмены задачи
//
// Exchanges:
//   - quanta.tasks   — очередь submission (direct, durable, с DLQ)
//   - quanta.signals — сигналы отмены (fanout: каждый воркер получает
//     каждый сигнал через свою эксклюзивную очередь; действует только
//     владелец lease)
//   - quanta.dlq     — dead letter queue
package mq
