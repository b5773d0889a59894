// Package schedule computes delivery boundaries for batched and weekly
// notifications. A timing defect must never lose a notification, so every
// malformed input degrades to a safe default instead of returning an error.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when the configured schedule is empty or malformed.
var (
	DefaultBatchSlots = []Clock{{Hour: 9}, {Hour: 13}, {Hour: 17}}
	DefaultWeeklyDay  = time.Sunday
	DefaultWeeklySlot = Clock{Hour: 20}
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// at anchors the clock time onto the given date.
func (c Clock) at(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("schedule: malformed clock time %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("schedule: malformed hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("schedule: malformed minute in %q", s)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// ParseWeekday parses an English weekday name, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("schedule: unknown weekday %q", s)
}

// Plan holds the resolved batch and weekly delivery boundaries.
type Plan struct {
	BatchSlots []Clock
	WeeklyDay  time.Weekday
	WeeklySlot Clock
}

// NewPlan resolves configured time strings into a Plan. Malformed or empty
// values fall back to the defaults; each fallback is logged as a
// configuration warning, never surfaced as an error.
func NewPlan(batchTimes []string, weeklyDay, weeklyTime string, log *zap.Logger) Plan {
	if log == nil {
		log = zap.NewNop()
	}

	plan := Plan{}

	for _, raw := range batchTimes {
		clock, err := ParseClock(raw)
		if err != nil {
			log.Warn("ignoring malformed batch time", zap.String("value", raw), zap.Error(err))
			continue
		}
		plan.BatchSlots = append(plan.BatchSlots, clock)
	}
	if len(plan.BatchSlots) == 0 {
		if len(batchTimes) > 0 {
			log.Warn("no usable batch times configured, using defaults")
		}
		plan.BatchSlots = append([]Clock(nil), DefaultBatchSlots...)
	}
	sort.Slice(plan.BatchSlots, func(i, j int) bool {
		a, b := plan.BatchSlots[i], plan.BatchSlots[j]
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.Minute < b.Minute
	})

	day, err := ParseWeekday(weeklyDay)
	if err != nil {
		log.Warn("malformed weekly day, using default", zap.String("value", weeklyDay))
		day = DefaultWeeklyDay
	}
	plan.WeeklyDay = day

	slot, err := ParseClock(weeklyTime)
	if err != nil {
		log.Warn("malformed weekly time, using default", zap.String("value", weeklyTime))
		slot = DefaultWeeklySlot
	}
	plan.WeeklySlot = slot

	return plan
}

// NextBatch returns the first batch slot strictly after now, wrapping to the
// first slot of the next day once today's slots are exhausted.
func (p Plan) NextBatch(now time.Time) time.Time {
	slots := p.BatchSlots
	if len(slots) == 0 {
		slots = DefaultBatchSlots
	}

	for _, slot := range slots {
		if candidate := slot.at(now); candidate.After(now) {
			return candidate
		}
	}

	return slots[0].at(now.AddDate(0, 0, 1))
}

// NextWeekly returns the next occurrence of the weekly day/time strictly
// after now.
func (p Plan) NextWeekly(now time.Time) time.Time {
	days := (int(p.WeeklyDay) - int(now.Weekday()) + 7) % 7
	candidate := p.WeeklySlot.at(now.AddDate(0, 0, days))
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// BatchCronSpecs renders the batch slots as standard five-field cron
// expressions for the dispatch layer.
func (p Plan) BatchCronSpecs() []string {
	specs := make([]string, 0, len(p.BatchSlots))
	for _, slot := range p.BatchSlots {
		specs = append(specs, fmt.Sprintf("%d %d * * *", slot.Minute, slot.Hour))
	}
	return specs
}

// WeeklyCronSpec renders the weekly slot as a five-field cron expression.
func (p Plan) WeeklyCronSpec() string {
	return fmt.Sprintf("%d %d * * %d", p.WeeklySlot.Minute, p.WeeklySlot.Hour, int(p.WeeklyDay))
}
