package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todo-planner/internal/config"
	"todo-planner/internal/logging"
	"todo-planner/internal/model"
	"todo-planner/internal/recurrence"
	"todo-planner/internal/repository"
)

// InstanceGenerator materializes dated instances of recurring todos up to a horizon.
type InstanceGenerator struct {
	todoRepo     *repository.TodoRepository
	instanceRepo *repository.InstanceRepository
	now          func() time.Time
	maxDays      int
	mu           sync.Mutex
}

func NewInstanceGenerator(todoRepo *repository.TodoRepository, instanceRepo *repository.InstanceRepository) *InstanceGenerator {
	return &InstanceGenerator{
		todoRepo:     todoRepo,
		instanceRepo: instanceRepo,
		now:          time.Now,
		maxDays:      config.DefaultMaxGenerateDays,
	}
}

// WithMaxHorizon caps the horizon Generate accepts.
func (g *InstanceGenerator) WithMaxHorizon(days int) *InstanceGenerator {
	if days > 0 {
		g.maxDays = days
	}
	return g
}

// MaxHorizon is the largest horizon Generate accepts.
func (g *InstanceGenerator) MaxHorizon() int {
	return g.maxDays
}

// WithClock replaces the time source; used by tests.
func (g *InstanceGenerator) WithClock(now func() time.Time) *InstanceGenerator {
	g.now = now
	return g
}

// Generate creates the missing instances dated before today+horizonDays for
// every recurring todo and returns how many were created. Calls are
// serialized. A persistence error stops the run; the count reached so far is
// returned with it.
func (g *InstanceGenerator) Generate(ctx context.Context, horizonDays int) (int, error) {
	if horizonDays <= 0 {
		return 0, ErrInvalidHorizon
	}
	if horizonDays > g.maxDays {
		return 0, fmt.Errorf("%w: %d > %d days", ErrHorizonTooLong, horizonDays, g.maxDays)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	log := logging.FromContext(ctx)
	today := model.StartOfDay(g.now())
	endDate := today.AddDate(0, 0, horizonDays)

	log.Info("generating recurring todo instances", "days", horizonDays, "until", model.FormatDate(endDate))

	todos, err := g.todoRepo.ListRecurring(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, todo := range todos {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := g.generateForTodo(ctx, todo, today, endDate)
		created += n
		if err != nil {
			return created, fmt.Errorf("todo %d: %w", todo.ID, err)
		}
	}

	log.Info("recurring todo instances generated", "created", created, "todos", len(todos))
	return created, nil
}

func (g *InstanceGenerator) generateForTodo(ctx context.Context, todo model.Todo, today, endDate time.Time) (int, error) {
	log := logging.FromContext(ctx)

	rule := recurrence.Parse(todo.RecurringSchedule)
	if !rule.Generates() {
		log.Warn("skipping todo with unrecognized schedule", "todo_id", todo.ID, "schedule", todo.RecurringSchedule)
		return 0, nil
	}

	created := 0
	err := g.instanceRepo.Transaction(ctx, func(repo *repository.InstanceRepository) error {
		anchor, err := anchorDate(ctx, repo, todo, today.Location())
		if err != nil {
			return err
		}
		if anchor.IsZero() {
			log.Warn("skipping todo with unreadable due date", "todo_id", todo.ID, "due_date", todo.DueDate)
			return nil
		}

		start := anchor
		if start.Before(today) {
			start = today
		}

		for current := rule.Next(start); current.Before(endDate); current = rule.Next(current) {
			inserted, err := repo.InsertIfMissing(ctx, todo.ID, model.FormatDate(current))
			if err != nil {
				return err
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		log.Debug("todo instances created", "todo_id", todo.ID, "schedule", rule.String(), "created", created)
	}
	return created, nil
}

// anchorDate is the due date of the todo's latest instance, falling back to
// the todo's own due date. A zero time means the stored date is unreadable.
func anchorDate(ctx context.Context, repo *repository.InstanceRepository, todo model.Todo, loc *time.Location) (time.Time, error) {
	raw := todo.DueDate
	latest, err := repo.Latest(ctx, todo.ID)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		raw = latest.DueDate
	}

	date, err := model.ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, nil
	}
	return date, nil
}
