package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"todo-planner/internal/logging"
	"todo-planner/internal/model"
	"todo-planner/internal/recurrence"
	"todo-planner/internal/repository"
)

const DefaultPageSize = 10

// TodoInput represents data required to create a todo.
// CategoryID selects an existing category; Category names one to find or create.
type TodoInput struct {
	Title             string
	Details           string
	DueDate           string
	Recurring         bool
	RecurringSchedule string
	CategoryID        *uint
	Category          string
}

// DayFilter narrows the per-day view.
type DayFilter struct {
	Date       string
	CategoryID *uint
	Complete   *bool
	Page       int
	PageSize   int
}

// DayItem is a todo as seen on one day, with that day's instance when it recurs.
type DayItem struct {
	Todo     model.Todo          `json:"todo"`
	Instance *model.TodoInstance `json:"instance,omitempty"`
}

// DayView is one page of the per-day listing.
type DayView struct {
	Date     string    `json:"date"`
	Items    []DayItem `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// TodoService wraps todo-related business logic.
type TodoService struct {
	todoRepo     *repository.TodoRepository
	instanceRepo *repository.InstanceRepository
	categoryRepo *repository.CategoryRepository
}

func NewTodoService(todoRepo *repository.TodoRepository, instanceRepo *repository.InstanceRepository, categoryRepo *repository.CategoryRepository) *TodoService {
	return &TodoService{todoRepo: todoRepo, instanceRepo: instanceRepo, categoryRepo: categoryRepo}
}

func (s *TodoService) CreateTodo(ctx context.Context, user *model.User, input TodoInput) (*model.Todo, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > 255 {
		return nil, invalid("title", "must be at most 255 characters")
	}

	dueDate := strings.TrimSpace(input.DueDate)
	if dueDate == "" {
		return nil, invalid("due_date", "is required")
	}
	if _, err := time.Parse(model.DateLayout, dueDate); err != nil {
		return nil, invalid("due_date", "must be a date in YYYY-MM-DD format")
	}

	schedule := ""
	if input.Recurring {
		rule := recurrence.Parse(input.RecurringSchedule)
		if !rule.Generates() {
			return nil, invalid("recurring_schedule", "must be daily, weekly, monthly, yearly or a number of days")
		}
		schedule = rule.String()
	}

	categoryID, err := s.resolveCategory(ctx, user, input)
	if err != nil {
		return nil, err
	}

	todo := model.Todo{
		UserID:            user.ID,
		CategoryID:        categoryID,
		Title:             title,
		Details:           strings.TrimSpace(input.Details),
		DueDate:           dueDate,
		Recurring:         input.Recurring,
		RecurringSchedule: schedule,
	}
	if err := s.todoRepo.Create(ctx, &todo); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("todo created", "todo_id", todo.ID, "user_id", user.ID, "recurring", todo.Recurring, "schedule", todo.RecurringSchedule)
	return &todo, nil
}

func (s *TodoService) resolveCategory(ctx context.Context, user *model.User, input TodoInput) (*uint, error) {
	if input.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(ctx, user.ID, *input.CategoryID)
		if err != nil {
			if errors.Is(notFound(err), ErrNotFound) {
				return nil, invalid("category_id", "does not exist")
			}
			return nil, err
		}
		return &category.ID, nil
	}
	name := strings.TrimSpace(input.Category)
	if name == "" {
		return nil, nil
	}
	category, err := s.categoryRepo.GetOrCreate(ctx, user.ID, name)
	if err != nil {
		return nil, err
	}
	return &category.ID, nil
}

func (s *TodoService) GetTodo(ctx context.Context, user *model.User, todoID uint) (*model.Todo, error) {
	todo, err := s.todoRepo.FindByID(ctx, user.ID, todoID)
	if err != nil {
		return nil, notFound(err)
	}
	return todo, nil
}

// Instances lists every materialized occurrence of a todo, oldest first.
func (s *TodoService) Instances(ctx context.Context, user *model.User, todoID uint) ([]model.TodoInstance, error) {
	if _, err := s.GetTodo(ctx, user, todoID); err != nil {
		return nil, err
	}
	return s.instanceRepo.ListByTodo(ctx, todoID)
}

// ToggleTodo flips the completion flag of the todo itself.
func (s *TodoService) ToggleTodo(ctx context.Context, user *model.User, todoID uint) (*model.Todo, error) {
	todo, err := s.GetTodo(ctx, user, todoID)
	if err != nil {
		return nil, err
	}
	if err := s.todoRepo.SetComplete(ctx, todo, !todo.Complete); err != nil {
		return nil, err
	}
	todo.Complete = !todo.Complete
	return todo, nil
}

// ToggleInstance flips the completion flag of one occurrence; the parent todo is untouched.
func (s *TodoService) ToggleInstance(ctx context.Context, user *model.User, instanceID uint) (*model.TodoInstance, error) {
	instance, err := s.instanceRepo.FindForUser(ctx, user.ID, instanceID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.instanceRepo.SetComplete(ctx, instance, !instance.Complete); err != nil {
		return nil, err
	}
	instance.Complete = !instance.Complete
	return instance, nil
}

// DeleteTodo removes a todo and its instances.
func (s *TodoService) DeleteTodo(ctx context.Context, user *model.User, todoID uint) error {
	if err := s.todoRepo.Delete(ctx, user.ID, todoID); err != nil {
		return notFound(err)
	}
	logging.FromContext(ctx).Info("todo deleted", "todo_id", todoID, "user_id", user.ID)
	return nil
}

// ListDay returns the todos due on filter.Date or recurring on that date.
func (s *TodoService) ListDay(ctx context.Context, user *model.User, filter DayFilter) (*DayView, error) {
	if _, err := time.Parse(model.DateLayout, filter.Date); err != nil {
		return nil, invalid("date", "must be a date in YYYY-MM-DD format")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	todos, total, err := s.todoRepo.ListForDay(ctx, repository.DayQuery{
		UserID:     user.ID,
		Date:       filter.Date,
		CategoryID: filter.CategoryID,
		Complete:   filter.Complete,
		Limit:      size,
		Offset:     (page - 1) * size,
	})
	if err != nil {
		return nil, err
	}

	items := make([]DayItem, 0, len(todos))
	for _, todo := range todos {
		item := DayItem{Todo: todo}
		if len(todo.Instances) > 0 {
			instance := todo.Instances[0]
			item.Instance = &instance
		}
		item.Todo.Instances = nil
		items = append(items, item)
	}

	return &DayView{Date: filter.Date, Items: items, Total: total, Page: page, PageSize: size}, nil
}
