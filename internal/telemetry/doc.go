// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//
// Prometheus-метрики объявляются в пакетах, которым они принадлежат
// (executor, control, attribution); все сервисы экспортируют их на
// /metrics endpoint и используют единый формат логирования.
package telemetry
