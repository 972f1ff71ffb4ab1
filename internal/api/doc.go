// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go        — Handler с DI (gateway, controller, репозитории, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery, операторская авторизация)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - action_handler.go — каталог действий и preview получателей
//   - run_handler.go    — submit, чтение, retry и cancel runs
//   - digest_handler.go — настройки еженедельного дайджеста
//
// API предоставляет REST endpoints для каталога действий, runs и
// настроек дайджеста.
package api
