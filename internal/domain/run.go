package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск действия над вычисленной выборкой получателей.
//
// Run создаётся когда:
// - Клиент отправляет Submit через API (Gateway)
// - Digest scheduler создаёт запуск по расписанию
// - Оператор делает retry упавшего run (всегда новый run)
//
// Run никогда не удаляется: терминальные runs — исторический журнал.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// ProjectID — проект (tenant), которому принадлежит run.
	ProjectID uuid.UUID `json:"project_id"`

	// ActionID — действие из каталога (только kind=workflow).
	ActionID ActionID `json:"action_id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// IdempotencyKey — ключ идемпотентности, уникален в рамках проекта.
	// Повторный Submit с тем же ключом возвращает существующий run.
	IdempotencyKey string `json:"idempotency_key"`

	// Params — параметры действия, переданные при создании.
	Params map[string]any `json:"params,omitempty"`

	// RecipientCountEstimate — оценка размера выборки на момент
	// submit (из preview). Информационное поле.
	RecipientCountEstimate int `json:"recipient_count_estimate,omitempty"`

	// TriggeredBy — кто инициировал run: id пользователя, "scheduler",
	// id оператора при retry.
	TriggeredBy string `json:"triggered_by"`

	// RetryOf — id исходного run, если этот run создан через retry.
	RetryOf *uuid.UUID `json:"retry_of,omitempty"`

	// RetryReason — причина retry, указанная оператором.
	RetryReason string `json:"retry_reason,omitempty"`

	// RequestedAt — время создания run.
	RequestedAt time.Time `json:"requested_at"`

	// StartedAt — время первого захвата executor'ом.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время перехода в терминальный статус.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// LeaseExpiresAt — срок эксклюзивного lease executor'а.
	// Установлен тогда и только тогда, когда Status == RUNNING.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	// Attempts — количество начатых попыток выполнения.
	Attempts int `json:"attempts"`

	// MaxAttempts — потолок для Attempts. Ограничивает только
	// автоматический перезахват, не ручные retry (они создают
	// новый run).
	MaxAttempts int `json:"max_attempts"`

	// Result — итог выполнения, заполняется при финализации
	// или принудительной отмене.
	Result *RunResult `json:"result,omitempty"`

	// Outcome — атрибуция бизнес-результата, заполняется
	// асинхронно после завершения run.
	Outcome *RunOutcome `json:"outcome,omitempty"`
}

// RunResult — агрегированный итог выполнения run.
type RunResult struct {
	// TotalRecipients — размер вычисленной выборки.
	TotalRecipients int `json:"total_recipients"`

	// Successful — количество успешно отправленных сообщений.
	Successful int `json:"successful"`

	// Failed — количество неудачных отправок (per-recipient).
	Failed int `json:"failed"`

	// Suppressed — количество пропущенных (do-not-contact).
	Suppressed int `json:"suppressed"`

	// ErrorSummary — описание инфраструктурной ошибки, если run
	// завершился FAILED.
	ErrorSummary string `json:"error_summary,omitempty"`

	// Cancelled — run был принудительно отменён оператором.
	Cancelled bool `json:"cancelled,omitempty"`

	// CancelledBy — оператор, выполнивший отмену.
	CancelledBy string `json:"cancelled_by,omitempty"`

	// CancelReason — причина отмены.
	CancelReason string `json:"cancel_reason,omitempty"`
}

// RunOutcome — атрибуция бизнес-результата завершённого run.
type RunOutcome struct {
	// Model — имя модели атрибуции ("last_touch").
	Model string `json:"model"`

	// WindowHours — окно атрибуции, скопировано из определения действия.
	WindowHours int `json:"window_hours"`

	// Conversions — количество засчитанных конверсий.
	Conversions int `json:"conversions"`

	// RevenueCents — суммарная выручка в центах.
	RevenueCents int64 `json:"revenue_cents"`

	// Currency — валюта выручки (ISO 4217).
	Currency string `json:"currency,omitempty"`

	// Confidence — уверенность сопоставления.
	Confidence Confidence `json:"confidence"`

	// MatchedBy — способы сопоставления, встретившиеся в выборке
	// ("email", "session").
	MatchedBy []string `json:"matched_by,omitempty"`

	// ComputedAt — время расчёта.
	ComputedAt time.Time `json:"computed_at"`
}

// LeaseExpired возвращает true, если run в RUNNING и его lease истёк.
// Такой run считается "застрявшим" и виден reaper'у.
func (r *Run) LeaseExpired(now time.Time) bool {
	return r.Status == RunStatusRunning &&
		r.LeaseExpiresAt != nil &&
		now.After(*r.LeaseExpiresAt)
}

// CanCancel возвращает true, если run можно принудительно отменить.
func (r *Run) CanCancel() bool {
	return r.Status == RunStatusQueued || r.Status == RunStatusRunning
}

// CanRetry возвращает true, если для run допустим ручной retry:
// run упал, либо завис в RUNNING с истёкшим lease.
func (r *Run) CanRetry(now time.Time) bool {
	if r.Status == RunStatusFailed {
		return true
	}
	return r.LeaseExpired(now)
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}
