package parser

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseCron parses a standard five-field expression. Descriptors such as "@daily" are
// accepted too.
func ParseCron(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// CalculateNextRun returns the first activation of expr strictly after from.
func CalculateNextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := schedule.Next(from)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires", expr)
	}
	return next, nil
}
