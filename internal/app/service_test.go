package app

import (
	"testing"
	"time"
)

func TestUntilNextClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		clock string
		want  time.Duration
	}{
		{"今日未到", "08:00", time.Hour},
		{"今日已过顺延明天", "06:30", 23*time.Hour + 30*time.Minute},
		{"恰好当前时刻顺延明天", "07:00", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := untilNextClock(now, tt.clock); got != tt.want {
				t.Fatalf("untilNextClock = %v, want %v", got, tt.want)
			}
		})
	}
}
