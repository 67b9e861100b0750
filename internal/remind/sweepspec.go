package remind

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepParser accepts 5-field crontab specs, optional leading seconds and
// @descriptors. The sweep runner schedules with the same parser, so a spec
// accepted here is a spec the runner will take.
var sweepParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// SweepKind describes the normalized kind of a sweep schedule string.
type SweepKind int

const (
	SweepCron SweepKind = iota
	SweepInterval
)

// SweepSpec is a parsed sweep schedule.
//
// Supported forms:
//   - Cron (crontab.guru-style): "*/5 * * * *", "@hourly", "@every 30s"
//   - Interval duration: "60s", "2m30s"
//
// Optional prefixes force one interpretation: "cron:" and "every:".
// Bare HH:MM is deliberately not accepted here; in this agent that shape
// means a wall-clock reminder time, not an interval.
type SweepSpec struct {
	Kind  SweepKind
	Cron  string
	Every time.Duration
}

// CronSpec renders the schedule in the form the cron runner accepts.
func (s SweepSpec) CronSpec() string {
	if s.Kind == SweepInterval {
		return "@every " + s.Every.String()
	}
	return s.Cron
}

// ParseSweep parses a sweep schedule string.
func ParseSweep(raw string) (SweepSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return SweepSpec{}, fmt.Errorf("sweep schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return SweepSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		if _, err := sweepParser.Parse(expr); err != nil {
			return SweepSpec{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
		}
		return SweepSpec{Kind: SweepCron, Cron: expr}, nil
	}
	if strings.HasPrefix(low, "every:") {
		v := strings.TrimSpace(s[len("every:"):])
		d, err := time.ParseDuration(v)
		if err != nil {
			return SweepSpec{}, fmt.Errorf("invalid interval %q (use a Go duration like '60s'/'2m30s')", v)
		}
		if d <= 0 {
			return SweepSpec{}, fmt.Errorf("interval must be > 0")
		}
		return SweepSpec{Kind: SweepInterval, Every: d}, nil
	}

	// Heuristics: any whitespace or leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		if _, err := sweepParser.Parse(s); err != nil {
			return SweepSpec{}, fmt.Errorf("invalid cron schedule %q: %w", s, err)
		}
		return SweepSpec{Kind: SweepCron, Cron: s}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return SweepSpec{}, fmt.Errorf("interval must be > 0")
		}
		return SweepSpec{Kind: SweepInterval, Every: d}, nil
	}

	return SweepSpec{}, fmt.Errorf(
		"invalid sweep schedule %q (use cron like '*/5 * * * *', '@every 1m', or a duration like '60s')",
		raw,
	)
}
