// Package engine содержит Run Submission Gateway — единственную точку
// создания runs.
//
// Gateway валидирует запрос по каталогу действий, дедуплицирует по
// (project_id, idempotency_key) и сохраняет новый run в статусе QUEUED.
// Выполнение Gateway не запускает: он публикует событие run.queued,
// которое подхватывает executor (или polling fallback executor'а).
package engine
