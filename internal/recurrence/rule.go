// Package recurrence resolves todo schedule codes into rules and steps dates by them.
package recurrence

import (
	"strconv"
	"strings"
	"time"
)

// Kind tags the cadence of a Rule.
type Kind int

const (
	Unrecognized Kind = iota
	Daily
	Weekly
	Monthly
	Yearly
	EveryNDays
)

// Rule is a parsed schedule code. Days is only meaningful for EveryNDays.
type Rule struct {
	Kind Kind
	Days int
}

// Parse resolves a schedule code. It never fails: codes that are neither a
// keyword nor a positive integer yield an Unrecognized rule.
func Parse(schedule string) Rule {
	code := strings.ToLower(strings.TrimSpace(schedule))
	switch code {
	case "daily":
		return Rule{Kind: Daily}
	case "weekly":
		return Rule{Kind: Weekly}
	case "monthly":
		return Rule{Kind: Monthly}
	case "yearly":
		return Rule{Kind: Yearly}
	}
	days, err := strconv.Atoi(code)
	if err != nil || days < 1 {
		return Rule{Kind: Unrecognized}
	}
	return Rule{Kind: EveryNDays, Days: days}
}

// Valid reports whether schedule produces occurrences.
func Valid(schedule string) bool {
	return Parse(schedule).Generates()
}

// Generates is false only for Unrecognized rules.
func (r Rule) Generates() bool {
	return r.Kind != Unrecognized
}

// Next returns the occurrence following t. Month and year steps clamp the
// day to the end of the target month, so Jan 31 steps to Feb 28 (or 29).
func (r Rule) Next(t time.Time) time.Time {
	switch r.Kind {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return addMonths(t, 1)
	case Yearly:
		return addMonths(t, 12)
	case EveryNDays:
		return t.AddDate(0, 0, r.Days)
	default:
		return t
	}
}

// String renders the canonical schedule code, empty for Unrecognized.
func (r Rule) String() string {
	switch r.Kind {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	case EveryNDays:
		return strconv.Itoa(r.Days)
	default:
		return ""
	}
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
