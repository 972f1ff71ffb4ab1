package executor

import "errors"

// Ошибки executor'а.
var (
	// ErrNotClaimable — run нельзя захватить: он не в QUEUED, его lease
	// ещё жив, либо попытки исчерпаны. Обычно значит, что run забрал
	// другой executor — это не сбой.
	ErrNotClaimable = errors.New("run not claimable")

	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")
)
