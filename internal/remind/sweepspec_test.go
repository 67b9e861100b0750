package remind

import (
	"testing"
	"time"
)

func TestParseSweepVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		kind  SweepKind
		cron  string
		every time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SweepCron, cron: "*/5 * * * *"},
		{name: "descriptor", raw: "@hourly", kind: SweepCron, cron: "@hourly"},
		{name: "at every descriptor", raw: "@every 1m", kind: SweepCron, cron: "@every 1m"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SweepCron, cron: "0 0 * * *"},
		{name: "duration", raw: "60s", kind: SweepInterval, every: time.Minute},
		{name: "compound duration", raw: "2m30s", kind: SweepInterval, every: 2*time.Minute + 30*time.Second},
		{name: "prefixed interval", raw: "every:45s", kind: SweepInterval, every: 45 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSweep(tt.raw)
			if err != nil {
				t.Fatalf("ParseSweep(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.kind == SweepCron && got.Cron != tt.cron {
				t.Fatalf("Cron = %q, want %q", got.Cron, tt.cron)
			}
			if tt.kind == SweepInterval && got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestParseSweepInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "-5s", "0s", "every:", "every:never", "16:30", "* * *", "cron:@often", "@every nope"} {
		if _, err := ParseSweep(raw); err == nil {
			t.Fatalf("ParseSweep(%q) succeeded, want error", raw)
		}
	}
}

func TestSweepSpecCronSpec(t *testing.T) {
	t.Parallel()
	if got := (SweepSpec{Kind: SweepInterval, Every: 90 * time.Second}).CronSpec(); got != "@every 1m30s" {
		t.Fatalf("CronSpec = %q, want %q", got, "@every 1m30s")
	}
	if got := (SweepSpec{Kind: SweepCron, Cron: "@hourly"}).CronSpec(); got != "@hourly" {
		t.Fatalf("CronSpec = %q, want %q", got, "@hourly")
	}
}
