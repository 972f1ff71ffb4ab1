package domain

import (
	"time"

	"github.com/google/uuid"
)

// DigestSchedule — настройка периодического дайджеста проекта.
//
// Ровно одна запись на проект. Scheduler проверяет NextAt и создаёт
// digest run, когда время подошло, после чего вычисляет новое NextAt.
type DigestSchedule struct {
	// ProjectID — проект, которому принадлежит расписание.
	ProjectID uuid.UUID `json:"project_id"`

	// Enabled — флаг активности. Выключенное расписание не срабатывает
	// и не имеет NextAt.
	Enabled bool `json:"enabled"`

	// Hour — локальный час срабатывания (0-23).
	Hour int `json:"hour"`

	// Timezone — IANA timezone проекта ("Europe/Berlin").
	// Следующее срабатывание выводится из правил зоны, а не из
	// фиксированного смещения — переходы DST не сдвигают локальный час.
	Timezone string `json:"timezone"`

	// NextAt — время следующего срабатывания (UTC).
	// Nil, если расписание выключено.
	NextAt *time.Time `json:"next_at,omitempty"`

	// LastRunID — id последнего созданного digest run.
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue проверяет, пора ли создавать digest run.
func (d *DigestSchedule) IsDue(now time.Time) bool {
	if !d.Enabled || d.NextAt == nil {
		return false
	}
	return now.After(*d.NextAt) || now.Equal(*d.NextAt)
}
