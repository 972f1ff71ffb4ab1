package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED
//	QUEUED/RUNNING → FAILED (принудительная отмена оператором)
//
// Переходы монотонны: терминальный статус никогда не возвращается
// обратно в QUEUED или RUNNING.
type RunStatus string

const (
	// RunStatusQueued — run создан Gateway, ожидает захвата executor'ом.
	RunStatusQueued RunStatus = "QUEUED"

	// RunStatusRunning — run захвачен executor'ом, lease активен.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — run завершён без инфраструктурных ошибок.
	// Ошибки доставки отдельным получателям не переводят run в FAILED.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run завершился инфраструктурной ошибкой
	// или был отменён оператором.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Valid проверяет, что статус — один из известных.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// SendStatus — терминальный статус доставки одному получателю.
//
// Send создаётся сразу в терминальном статусе и никогда не меняется.
type SendStatus string

const (
	// SendStatusSent — сообщение принято провайдером.
	SendStatusSent SendStatus = "SENT"

	// SendStatusFailed — доставка этому получателю не удалась.
	SendStatusFailed SendStatus = "FAILED"

	// SendStatusSuppressed — получатель в списке do-not-contact,
	// попытка отправки не выполнялась.
	SendStatusSuppressed SendStatus = "SUPPRESSED"
)

// Confidence — уровень уверенности атрибуции результата.
type Confidence string

const (
	// ConfidenceHigh — все конверсии сопоставлены по прямому
	// совпадению email получателя.
	ConfidenceHigh Confidence = "HIGH"

	// ConfidenceMedium — часть конверсий сопоставлена по session id.
	ConfidenceMedium Confidence = "MEDIUM"

	// ConfidenceLow — только слабые совпадения по анонимным
	// идентификаторам.
	ConfidenceLow Confidence = "LOW"
)
