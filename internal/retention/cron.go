package retention

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер расписаний очистки.
// Поддерживает стандартные пять полей и дескрипторы (@every 1m, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule проверяет валидность расписания.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", expr, err)
	}
	return nil
}

// nextActivation вычисляет следующее время очистки после from.
func nextActivation(schedule cron.Schedule, from time.Time) time.Time {
	return schedule.Next(from)
}
