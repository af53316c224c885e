package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kahoon/engine/errs"
)

// cronSchedule adapts a robfig/cron/v3 Schedule to the spec's
// next_after(now) -> time | none contract (§1: cron-expression parsing is an
// external collaborator). A zero time.Time from the underlying Schedule is
// treated as "no future occurrence" (§9 open question, resolved as: the
// schedule completes immediately after registration).
type cronSchedule struct {
	expr     string
	schedule cron.Schedule
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseCron parses a standard 6-field cron expression (seconds precision),
// so the spec's own `*/1 * * * * *` example is representable (§8 scenario 5).
func parseCron(expr string) (*cronSchedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errs.Wrap(errs.KindBadCron, err)
	}
	return &cronSchedule{expr: expr, schedule: s}, nil
}

// next returns the next due time after t, or ok=false if there is none.
func (c *cronSchedule) next(t time.Time) (due time.Time, ok bool) {
	n := c.schedule.Next(t)
	if n.IsZero() {
		return time.Time{}, false
	}
	return n, true
}

func (c *cronSchedule) String() string { return c.expr }
