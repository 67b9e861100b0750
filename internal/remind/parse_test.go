package remind

import (
	"errors"
	"testing"
	"time"
)

func TestParseRelative(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
		task string
		due  time.Time
	}{
		{name: "minutes", text: `/remindme "Call mom" in 5 minutes`, task: "Call mom", due: now.Add(5 * time.Minute)},
		{name: "seconds", text: `/remindme "Stretch" in 30 seconds`, task: "Stretch", due: now.Add(30 * time.Second)},
		{name: "singular hour", text: `/remindme "Stand up" in 1 hour`, task: "Stand up", due: now.Add(time.Hour)},
		{name: "uppercase", text: `/RemindMe "Tea" IN 2 Minutes`, task: "Tea", due: now.Add(2 * time.Minute)},
		{name: "embedded in chat text", text: `hey bot, /remindme "Ship it" in 10 minutes`, task: "Ship it", due: now.Add(10 * time.Minute)},
		{name: "trailing words tolerated", text: `/remindme "Lunch" in 45 minutes please`, task: "Lunch", due: now.Add(45 * time.Minute)},
		{name: "relative wins over trailing at", text: `/remindme "Standup" in 5 minutes at 10:00`, task: "Standup", due: now.Add(5 * time.Minute)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text, now)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.text, err)
			}
			if got.Task != tt.task {
				t.Fatalf("Task = %q, want %q", got.Task, tt.task)
			}
			if !got.DueAt.Equal(tt.due) {
				t.Fatalf("DueAt = %v, want %v", got.DueAt, tt.due)
			}
			if got.DueAt.Location() != time.UTC {
				t.Fatalf("DueAt location = %v, want UTC", got.DueAt.Location())
			}
		})
	}
}

func TestParseAbsolute(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)

	tests := []struct {
		name string
		now  time.Time
		text string
		due  time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 3, 14, 12, 0, 0, 0, loc),
			text: `/remindme "Pick up kids" at 18:00`,
			due:  time.Date(2026, 3, 14, 18, 0, 0, 0, loc),
		},
		{
			name: "already passed rolls to tomorrow",
			now:  time.Date(2026, 3, 14, 12, 0, 0, 0, loc),
			text: `/remindme "Morning run" at 09:00`,
			due:  time.Date(2026, 3, 15, 9, 0, 0, 0, loc),
		},
		{
			name: "exactly now stays today",
			now:  time.Date(2026, 3, 14, 12, 0, 0, 0, loc),
			text: `/remindme "Now" at 12:00`,
			due:  time.Date(2026, 3, 14, 12, 0, 0, 0, loc),
		},
		{
			name: "rollover crosses month end",
			now:  time.Date(2026, 1, 31, 23, 30, 0, 0, loc),
			text: `/remindme "Rent" at 09:00`,
			due:  time.Date(2026, 2, 1, 9, 0, 0, 0, loc),
		},
		{
			name: "single digit hour",
			now:  time.Date(2026, 3, 14, 5, 0, 0, 0, loc),
			text: `/remindme "Coffee" at 7:30`,
			due:  time.Date(2026, 3, 14, 7, 30, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text, tt.now)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.text, err)
			}
			if !got.DueAt.Equal(tt.due) {
				t.Fatalf("DueAt = %v, want %v", got.DueAt, tt.due.UTC())
			}
			if got.DueAt.Location() != time.UTC {
				t.Fatalf("DueAt location = %v, want UTC", got.DueAt.Location())
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
	}{
		{name: "no command", text: "hello"},
		{name: "empty", text: ""},
		{name: "bare command", text: "/remindme"},
		{name: "unquoted task", text: "/remindme water plants in 5 minutes"},
		{name: "unterminated quote", text: `/remindme "water plants in 5 minutes`},
		{name: "missing clause", text: `/remindme "water plants"`},
		{name: "unknown keyword", text: `/remindme "water plants" on 5 minutes`},
		{name: "offset not a number", text: `/remindme "water plants" in five minutes`},
		{name: "negative offset", text: `/remindme "water plants" in -5 minutes`},
		{name: "missing unit", text: `/remindme "water plants" in 5`},
		{name: "unknown unit", text: `/remindme "water plants" in 5 days`},
		{name: "clock missing colon", text: `/remindme "water plants" at 16`},
		{name: "hour out of range", text: `/remindme "water plants" at 24:00`},
		{name: "minute out of range", text: `/remindme "water plants" at 16:60`},
		{name: "minute not two digits", text: `/remindme "water plants" at 16:5`},
		{name: "clock not numeric", text: `/remindme "water plants" at four:30`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, now)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.text)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if pe.Reason == "" {
				t.Fatal("ParseError.Reason is empty")
			}
		})
	}
}

func TestParseTaskText(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	got, err := Parse(`/remindme "buy milk, eggs & bread (2x)" in 1 hour`, now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := "buy milk, eggs & bread (2x)"; got.Task != want {
		t.Fatalf("Task = %q, want %q", got.Task, want)
	}
}
