package config

import (
	"testing"
)

func TestSummarizeConfigChangeNoChanges(t *testing.T) {
	t.Parallel()
	a := &Config{}
	b := &Config{}
	sections, _ := SummarizeConfigChange(a, b)
	if len(sections) != 0 {
		t.Fatalf("sections = %v, want none", sections)
	}
}

func TestSummarizeConfigChangeSections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    func(c *Config)
		mutate  func(c *Config)
		section string
	}{
		{name: "addr", mutate: func(c *Config) { c.Server.Addr = ":9000" }, section: "server"},
		{
			name:    "token rotation",
			base:    func(c *Config) { c.Server.Token = "old" },
			mutate:  func(c *Config) { c.Server.Token = "rotated" },
			section: "server",
		},
		{name: "timezone", mutate: func(c *Config) { c.Agent.Timezone = "Europe/Berlin" }, section: "agent"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "debug" }, section: "logging"},
		{
			name:    "alert token rotation",
			base:    func(c *Config) { c.Logging.Telegram.Token = "42:old" },
			mutate:  func(c *Config) { c.Logging.Telegram.Token = "42:rotated" },
			section: "logging",
		},
		{name: "sweep", mutate: func(c *Config) { c.Scheduler.Sweep = "@every 30s" }, section: "scheduler"},
		{name: "delivery timeout", mutate: func(c *Config) { c.Delivery.Timeout = "5s" }, section: "delivery"},
		{name: "history path", mutate: func(c *Config) { c.History = &HistoryConfig{Driver: "file", Path: "/tmp/h"} }, section: "history"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			oldCfg := &Config{}
			newCfg := &Config{}
			if tt.base != nil {
				tt.base(oldCfg)
				tt.base(newCfg)
			}
			tt.mutate(newCfg)

			sections, _ := SummarizeConfigChange(oldCfg, newCfg)
			found := false
			for _, s := range sections {
				if s == tt.section {
					found = true
				}
			}
			if !found {
				t.Fatalf("sections = %v, want %q flagged", sections, tt.section)
			}
		})
	}
}

func TestSummarizeConfigChangeHistoryPathChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{History: &HistoryConfig{Driver: "file", Path: "/var/a"}}
	newCfg := &Config{History: &HistoryConfig{Driver: "file", Path: "/var/b"}}

	sections, _ := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) != 1 || sections[0] != "history" {
		t.Fatalf("sections = %v, want [history]", sections)
	}
}
