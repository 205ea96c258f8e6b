package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("ENV", "qa")
	t.Setenv("QA_GRADINGLATEENROLLMENTDAYS", "7")
	t.Setenv("QA_GRADINGCACHETTL", "90m")
	t.Setenv("QA_DATABASEENGINE", "sqlite3")

	conf := NewConfig()
	assert.Equal(t, "QA", conf.Env)
	assert.False(t, conf.Debug)
	assert.False(t, conf.TestMode)
	assert.Equal(t, 7, conf.Grading.LateEnrollmentDays)
	assert.Equal(t, 90*time.Minute, conf.Grading.CacheTTL)
	assert.Equal(t, 30*24*time.Hour, conf.Grading.RecentQuarterWindow)
	assert.Equal(t, "system:late-enrollment", conf.Grading.SystemUser)
	assert.Equal(t, "sqlite3:masomo.db", conf.Database.String())
}

func TestGradingConfig_SweepSpec(t *testing.T) {
	tests := []struct {
		name string
		conf GradingConfig
		want string
	}{
		{name: "interval", conf: GradingConfig{SweepInterval: 3 * time.Hour}, want: "@every 3h0m0s"},
		{name: "schedule", conf: GradingConfig{SweepInterval: 3 * time.Hour, SweepSchedule: "30 2 * * *"}, want: "30 2 * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conf.SweepSpec(); got != tt.want {
				t.Errorf("SweepSpec() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDatabaseConfig_String(t *testing.T) {
	conf := DatabaseConfig{Engine: "postgres", Host: "db", Port: 5432, Name: "masomo"}
	assert.Equal(t, "postgres://db:5432/masomo", conf.String())
}

func TestDaysBetween(t *testing.T) {
	day := func(d int, h int) time.Time { return time.Date(2025, time.January, d, h, 0, 0, 0, time.UTC) }
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{name: "same day", from: day(10, 23), to: day(10, 1), want: 0},
		{name: "ten days", from: day(10, 23), to: day(20, 0), want: 10},
		{name: "before", from: day(20, 0), to: day(10, 12), want: -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.from, tt.to); got != tt.want {
				t.Errorf("DaysBetween() = %v, want %v", got, tt.want)
			}
		})
	}
}
