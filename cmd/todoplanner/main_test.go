package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/logging"
	"todo-planner/internal/model"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

func TestParseGenerateArgs(t *testing.T) {
	days, err := parseGenerateArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, 365, days)

	days, err = parseGenerateArgs([]string{"--days=30"})
	require.NoError(t, err)
	assert.Equal(t, 30, days)

	days, err = parseGenerateArgs([]string{"-days", "7"})
	require.NoError(t, err)
	assert.Equal(t, 7, days)

	for _, args := range [][]string{{"--days=0"}, {"--days=-5"}, {"--days=abc"}, {"--weeks=2"}} {
		_, err := parseGenerateArgs(args)
		assert.Error(t, err, args)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	t.Setenv("TODO_PLANNER_CONFIG", "")
	t.Setenv("DATABASE_URL", ":memory:")
	err := run(context.Background(), []string{"backfill"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRunGenerateRejectsBadDaysBeforeOpeningDB(t *testing.T) {
	t.Setenv("TODO_PLANNER_CONFIG", "")
	t.Setenv("DATABASE_URL", t.TempDir()+"/nested/planner.db")
	err := run(context.Background(), []string{"generate", "--days=0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

func TestRunGenerateRejectsDaysAboveMaximum(t *testing.T) {
	t.Setenv("TODO_PLANNER_CONFIG", "")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("GENERATE_DAYS", "")
	t.Setenv("MAX_GENERATE_DAYS", "800")
	err := run(context.Background(), []string{"generate", "--days=801"})
	assert.ErrorIs(t, err, service.ErrHorizonTooLong)
}

func TestGenerationJobLogsAroundRun(t *testing.T) {
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	todos := repository.NewTodoRepository(db)
	instances := repository.NewInstanceRepository(db)
	require.NoError(t, db.Create(&model.Todo{Title: "stretch", DueDate: "2025-01-01", Recurring: true, RecurringSchedule: "daily"}).Error)

	generator := service.NewInstanceGenerator(todos, instances).WithClock(func() time.Time {
		return time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)
	})

	var buf bytes.Buffer
	ctx := logging.WithContext(context.Background(), logging.New(&buf, "info"))
	generationJob(ctx, generator, 3)()

	out := buf.String()
	assert.Contains(t, out, "starting scheduled todo instance generation")
	assert.Contains(t, out, "completed scheduled todo instance generation")
	assert.Contains(t, out, "created=2")
}
