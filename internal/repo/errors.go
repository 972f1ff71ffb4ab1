package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict — условная запись не прошла: состояние строки не
	// соответствует ожиданию (проигранный claim, повторный outcome).
	ErrConflict = errors.New("conditional write conflict")
)
