package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Five-field cron plus descriptors such as @hourly and @every 1m.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron parses a cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(strings.TrimSpace(expr))
}

// NextFire returns the first fire time of expr strictly after now.
func NextFire(expr string, now time.Time) (time.Time, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now).UTC(), nil
}
