package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Rule
	}{
		{"daily", Rule{Kind: Daily}},
		{"weekly", Rule{Kind: Weekly}},
		{"monthly", Rule{Kind: Monthly}},
		{"yearly", Rule{Kind: Yearly}},
		{" Monthly ", Rule{Kind: Monthly}},
		{"10", Rule{Kind: EveryNDays, Days: 10}},
		{"1", Rule{Kind: EveryNDays, Days: 1}},
		{"", Rule{Kind: Unrecognized}},
		{"fortnightly", Rule{Kind: Unrecognized}},
		{"0", Rule{Kind: Unrecognized}},
		{"-3", Rule{Kind: Unrecognized}},
		{"1.5", Rule{Kind: Unrecognized}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("weekly"))
	assert.True(t, Valid("14"))
	assert.False(t, Valid("fortnightly"))
	assert.False(t, Valid(""))
}

func TestNext(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		rule  Rule
		start time.Time
		want  time.Time
	}{
		{"daily", Rule{Kind: Daily}, date(2025, 1, 1), date(2025, 1, 2)},
		{"daily across year", Rule{Kind: Daily}, date(2024, 12, 31), date(2025, 1, 1)},
		{"weekly", Rule{Kind: Weekly}, date(2025, 1, 1), date(2025, 1, 8)},
		{"monthly", Rule{Kind: Monthly}, date(2025, 1, 15), date(2025, 2, 15)},
		{"monthly clamps to february", Rule{Kind: Monthly}, date(2025, 1, 31), date(2025, 2, 28)},
		{"monthly clamps to leap february", Rule{Kind: Monthly}, date(2024, 1, 31), date(2024, 2, 29)},
		{"monthly clamps to april", Rule{Kind: Monthly}, date(2025, 3, 31), date(2025, 4, 30)},
		{"monthly across year", Rule{Kind: Monthly}, date(2025, 12, 31), date(2026, 1, 31)},
		{"yearly", Rule{Kind: Yearly}, date(2025, 6, 1), date(2026, 6, 1)},
		{"yearly from leap day", Rule{Kind: Yearly}, date(2024, 2, 29), date(2025, 2, 28)},
		{"every ten days", Rule{Kind: EveryNDays, Days: 10}, date(2025, 1, 1), date(2025, 1, 11)},
		{"unrecognized stays put", Rule{Kind: Unrecognized}, date(2025, 1, 1), date(2025, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Next(tt.start))
		})
	}
}

func TestNextKeepsTimeOfDay(t *testing.T) {
	start := time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC)
	got := Rule{Kind: Monthly}.Next(start)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC), got)
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "daily", Parse("DAILY").String())
	assert.Equal(t, "30", Parse(" 30 ").String())
	assert.Equal(t, "", Parse("sometimes").String())
}
