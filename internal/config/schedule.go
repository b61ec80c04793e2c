package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultIntervalMinutes = 10
	DefaultStartMinute     = 5
)

// Scheduling controls when the collector polls the feed. Runs happen at
// StartMinute past the hour and every IntervalMinutes after that, within
// the hour.
type Scheduling struct {
	Enabled         bool
	IntervalMinutes int
	StartMinute     int
	RunImmediately  bool
}

// Normalize replaces out-of-range values with the defaults.
func (s Scheduling) Normalize() Scheduling {
	if s.IntervalMinutes <= 0 || s.IntervalMinutes > 60 {
		s.IntervalMinutes = DefaultIntervalMinutes
	}
	if s.StartMinute < 0 || s.StartMinute >= 60 {
		s.StartMinute = DefaultStartMinute
	}
	return s
}

// Minutes lists the minutes past the hour at which a run fires.
func (s Scheduling) Minutes() []int {
	s = s.Normalize()
	var out []int
	for m := s.StartMinute; m < 60; m += s.IntervalMinutes {
		out = append(out, m)
	}
	return out
}

// CronExpression renders the schedule as a standard five-field cron spec.
func (s Scheduling) CronExpression() string {
	s = s.Normalize()
	switch {
	case s.IntervalMinutes == 60:
		return fmt.Sprintf("%d * * * *", s.StartMinute)
	case 60%s.IntervalMinutes == 0:
		return fmt.Sprintf("%d/%d * * * *", s.StartMinute, s.IntervalMinutes)
	default:
		return joinInts(s.Minutes(), ",") + " * * * *"
	}
}

// Description is a human readable form of the schedule for logs.
func (s Scheduling) Description() string {
	s = s.Normalize()
	switch {
	case s.IntervalMinutes == 60:
		return fmt.Sprintf("hourly at %d minutes past the hour", s.StartMinute)
	case 60%s.IntervalMinutes == 0:
		return fmt.Sprintf("every %d minutes (at %s minutes past the hour)",
			s.IntervalMinutes, joinInts(s.Minutes(), ", "))
	default:
		return "at the following minutes of each hour: " + joinInts(s.Minutes(), ", ")
	}
}

// NextRuns returns the next n fire times after from.
func (s Scheduling) NextRuns(from time.Time, n int) ([]time.Time, error) {
	sched, err := cron.ParseStandard(s.CronExpression())
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", s.CronExpression(), err)
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		out = append(out, t)
	}
	return out, nil
}

func joinInts(vals []int, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}
