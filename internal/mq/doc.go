// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.queued — новый run ожидает выполнения
//
// Exchanges:
//   - outreach.runs — события runs
//   - outreach.dlq  — dead letter queue
//
// Очередь — оптимизация задержки, а не источник истины: состояние runs
// живёт в Postgres, executor дополнительно опрашивает БД и подбирает
// runs, чьи сообщения потерялись.
package mq
