package digest

import "errors"

// ErrInvalidSettings — некорректные настройки дайджеста (час вне 0-23,
// неизвестная timezone).
var ErrInvalidSettings = errors.New("invalid digest settings")
