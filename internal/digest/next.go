package digest

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextAt вычисляет следующее срабатывание дайджеста: ближайшее
// наступление часа hour в зоне timezone после from.
//
// Время выводится из правил зоны, а не из фиксированного смещения:
// переход на летнее/зимнее время не сдвигает локальный час дайджеста.
// Возвращается в UTC для хранения в БД.
func NextAt(hour int, timezone string, from time.Time) (time.Time, error) {
	if hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("%w: hour %d", ErrInvalidSettings, hour)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSettings, timezone, err)
	}

	spec, err := cronParser.Parse(fmt.Sprintf("0 %d * * *", hour))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse digest cron: %w", err)
	}

	next := spec.Next(from.In(loc))
	return next.UTC(), nil
}
