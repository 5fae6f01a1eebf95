package service

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("08:05")
	require.NoError(t, err)
	assert.Equal(t, "0 5 8 * * *", spec)

	for _, bad := range []string{"8", "24:00", "07:60", "aa:bb"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestScheduleIntervalRunsJob(t *testing.T) {
	scheduler := NewSchedulerService(time.UTC, slog.Default())

	_, err := scheduler.ScheduleInterval(0, func() {})
	assert.Error(t, err)

	ran := make(chan struct{}, 1)
	_, err = scheduler.ScheduleInterval(time.Second, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	_, err = scheduler.ScheduleDaily("08:00", func() {})
	require.NoError(t, err)
	assert.Equal(t, 2, scheduler.Entries())

	scheduler.Start()
	defer scheduler.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("interval job did not run")
	}
}
