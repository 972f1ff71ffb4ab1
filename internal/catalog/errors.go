package catalog

import "errors"

// Ошибки каталога.
var (
	// ErrUnknownAction — действия нет в каталоге.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNotWorkflow — действие существует, но не является исполняемым.
	ErrNotWorkflow = errors.New("action is not a workflow")

	// ErrInvalidDefinition — некорректное определение при сборке каталога.
	ErrInvalidDefinition = errors.New("invalid action definition")
)
