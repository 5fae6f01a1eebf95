package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

type testEnv struct {
	db           *gorm.DB
	users        *repository.UserRepository
	todos        *repository.TodoRepository
	instances    *repository.InstanceRepository
	categories   *repository.CategoryRepository
	todoSvc      *TodoService
	categorySvc  *CategoryService
	digestSvc    *DigestService
	generatorSvc *InstanceGenerator
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	env := &testEnv{
		db:         db,
		users:      repository.NewUserRepository(db),
		todos:      repository.NewTodoRepository(db),
		instances:  repository.NewInstanceRepository(db),
		categories: repository.NewCategoryRepository(db),
	}
	env.todoSvc = NewTodoService(env.todos, env.instances, env.categories)
	env.categorySvc = NewCategoryService(env.categories)
	env.digestSvc = NewDigestService(env.todos, env.categories)
	env.generatorSvc = NewInstanceGenerator(env.todos, env.instances)
	return env
}

func (e *testEnv) user(t *testing.T, subject string) *model.User {
	t.Helper()
	user, err := e.users.UpsertByExternalID(context.Background(), subject)
	require.NoError(t, err)
	return user
}

// recurringTodo stores a recurring todo without its first instance.
func (e *testEnv) recurringTodo(t *testing.T, user *model.User, dueDate, schedule string) *model.Todo {
	t.Helper()
	todo := &model.Todo{
		UserID:            user.ID,
		Title:             "todo " + schedule,
		DueDate:           dueDate,
		Recurring:         true,
		RecurringSchedule: schedule,
	}
	require.NoError(t, e.db.Create(todo).Error)
	return todo
}

func (e *testEnv) instance(t *testing.T, todo *model.Todo, dueDate string) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.TodoInstance{TodoID: todo.ID, DueDate: dueDate}).Error)
}

func (e *testEnv) instanceDates(t *testing.T, todo *model.Todo) []string {
	t.Helper()
	instances, err := e.instances.ListByTodo(context.Background(), todo.ID)
	require.NoError(t, err)
	dates := make([]string, 0, len(instances))
	for _, instance := range instances {
		dates = append(dates, instance.DueDate)
	}
	return dates
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
	}
}
