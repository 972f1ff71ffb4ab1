package control

import "errors"

// Ошибки операторских действий.
var (
	// ErrConflict — действие невозможно в текущем статусе run:
	// retry живого run, cancel терминального.
	ErrConflict = errors.New("conflicting run state")

	// ErrInvalidReason — причина не указана или слишком короткая.
	ErrInvalidReason = errors.New("invalid reason")
)
