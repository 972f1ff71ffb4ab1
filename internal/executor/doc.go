// Package executor выполняет queued runs под эксклюзивным lease.
//
// Захват run — единственная условная запись в БД (queued → running
// с установкой lease_expires_at); выполнение может запускаться из
// нескольких процессов одновременно, in-process блокировок нет.
// Дальше executor вычисляет выборку получателей тем же resolver'ом,
// что и preview, отправляет сообщения по одному и финализирует run
// агрегированным результатом.
//
// Падение процесса посреди run оставляет его RUNNING с живым lease:
// run станет видимым reaper'у (и пригодным для повторного захвата)
// только после истечения lease.
package executor
