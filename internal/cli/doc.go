// Package cli реализует команды инструмента командной строки.
//
// Структура:
//   - client.go — HTTP-клиент для Outreach API
//   - output.go — табличный и JSON вывод
//   - run.go    — команды управления runs
//   - action.go — каталог действий и preview
//   - digest.go — настройки дайджеста
//
// CLI разговаривает с API только по HTTP и не импортирует internal/api:
// response-типы продублированы, чтобы бинарь CLI не тянул серверные
// зависимости.
package cli
