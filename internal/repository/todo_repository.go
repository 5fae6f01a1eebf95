package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"todo-planner/internal/model"
)

// DayQuery selects the todos shown for one calendar day.
type DayQuery struct {
	UserID     uint
	Date       string
	CategoryID *uint
	Complete   *bool
	Limit      int
	Offset     int
}

// TodoRepository handles CRUD for todos.
type TodoRepository struct {
	db *gorm.DB
}

func NewTodoRepository(db *gorm.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// Create stores a todo. A recurring todo gets its first instance, dated on
// the todo's own due date, in the same transaction.
func (r *TodoRepository) Create(ctx context.Context, todo *model.Todo) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(todo).Error; err != nil {
			return err
		}
		if !todo.Recurring || todo.RecurringSchedule == "" {
			return nil
		}
		first := model.TodoInstance{TodoID: todo.ID, DueDate: todo.DueDate}
		return tx.Create(&first).Error
	})
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

func (r *TodoRepository) FindByID(ctx context.Context, userID, todoID uint) (*model.Todo, error) {
	var todo model.Todo
	if err := r.db.WithContext(ctx).Preload("Category").
		Where("user_id = ? AND id = ?", userID, todoID).
		First(&todo).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// ListRecurring returns every todo flagged as recurring, across all users.
func (r *TodoRepository) ListRecurring(ctx context.Context) ([]model.Todo, error) {
	var todos []model.Todo
	if err := r.db.WithContext(ctx).Where("recurring = ?", true).Order("id ASC").Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("list recurring todos: %w", err)
	}
	return todos, nil
}

// ListForDay returns todos due on q.Date or having an instance on q.Date,
// newest first. Each todo's Instances holds only the instance of that day.
func (r *TodoRepository) ListForDay(ctx context.Context, q DayQuery) ([]model.Todo, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("todos.user_id = ?", q.UserID).
			Where("todos.due_date = ? OR EXISTS (SELECT 1 FROM todo_instances ti WHERE ti.todo_id = todos.id AND ti.due_date = ?)", q.Date, q.Date)
		if q.CategoryID != nil {
			db = db.Where("todos.category_id = ?", *q.CategoryID)
		}
		if q.Complete != nil {
			db = db.Where("todos.complete = ?", *q.Complete)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Todo{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count day todos: %w", err)
	}

	var todos []model.Todo
	query := r.db.WithContext(ctx).Scopes(scope).
		Preload("Category").
		Preload("Instances", "due_date = ?", q.Date).
		Order("todos.created_at DESC, todos.id DESC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit).Offset(q.Offset)
	}
	if err := query.Find(&todos).Error; err != nil {
		return nil, 0, fmt.Errorf("list day todos: %w", err)
	}
	return todos, total, nil
}

// ListOverdue returns open one-off todos of a user due before date, oldest first.
func (r *TodoRepository) ListOverdue(ctx context.Context, userID uint, date string, limit int) ([]model.Todo, error) {
	var todos []model.Todo
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND recurring = ? AND complete = ? AND due_date < ?", userID, false, false, date).
		Order("due_date ASC, id ASC").
		Limit(limit).
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue todos: %w", err)
	}
	return todos, nil
}

func (r *TodoRepository) SetComplete(ctx context.Context, todo *model.Todo, complete bool) error {
	if err := r.db.WithContext(ctx).Model(todo).Update("complete", complete).Error; err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return nil
}

// Delete removes a todo for the given user together with all its instances.
func (r *TodoRepository) Delete(ctx context.Context, userID, todoID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var todo model.Todo
		if err := tx.Where("user_id = ? AND id = ?", userID, todoID).First(&todo).Error; err != nil {
			return err
		}
		if err := tx.Where("todo_id = ?", todo.ID).Delete(&model.TodoInstance{}).Error; err != nil {
			return fmt.Errorf("delete instances: %w", err)
		}
		if err := tx.Delete(&todo).Error; err != nil {
			return fmt.Errorf("delete todo: %w", err)
		}
		return nil
	})
}
