package nlu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	// 2025-12-13 is a Saturday.
	now := time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-12-14", "2025-12-14", true},
		{"today", "2025-12-13", true},
		{"tomorrow", "2025-12-14", true},
		{"day after tomorrow", "2025-12-15", true},
		{"Saturday", "2025-12-13", true}, // same weekday counts as today
		{"sunday", "2025-12-14", true},
		{"Monday", "2025-12-15", true},
		{"next saturday", "2025-12-20", true},
		{"next monday", "2025-12-15", true},
		{"", "", false},
		{"soonish", "", false},
		{"2025-13-45", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDate(tt.in, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"17:00", "17:00", true},
		{"9:30", "09:30", true},
		{"9pm", "21:00", true},
		{"9 pm", "21:00", true},
		{"9:15pm", "21:15", true},
		{"12pm", "12:00", true},
		{"12am", "00:00", true},
		{"morning", "09:00", true},
		{"evening", "18:00", true},
		{"noon", "12:00", true},
		{"afternoon", "14:00", true},
		{"13pm", "", false},
		{"sometime", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEntitiesDropsUnresolvable(t *testing.T) {
	now := time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)
	e := NormalizeEntities(Entities{Date: "whenever", Time: "late-ish", ServiceType: "padel"}, now)
	assert.Empty(t, e.Date)
	assert.Empty(t, e.Time)
	assert.Equal(t, "padel", e.ServiceType)
}
