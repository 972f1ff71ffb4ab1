package engine

import "errors"

// Ошибки Gateway. Все отвергаются синхронно, на run не записываются.
var (
	// ErrInvalidAction — actionId неизвестен или не kind=workflow.
	ErrInvalidAction = errors.New("invalid action")

	// ErrValidation — некорректный запрос (пустой ключ идемпотентности,
	// не указан инициатор).
	ErrValidation = errors.New("validation failed")

	// ErrActionUnavailable — preconditions действия не выполнены,
	// создание run заблокировано.
	ErrActionUnavailable = errors.New("action unavailable")
)
