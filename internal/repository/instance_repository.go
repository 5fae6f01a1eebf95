package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todo-planner/internal/model"
)

// InstanceRepository reads and writes materialized occurrences of recurring todos.
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Transaction runs fn against a repository bound to a single transaction.
// The transaction is committed when fn returns nil and rolled back otherwise.
func (r *InstanceRepository) Transaction(ctx context.Context, fn func(repo *InstanceRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&InstanceRepository{db: tx})
	})
}

// Latest returns the instance with the greatest due date, or nil when the todo has none.
func (r *InstanceRepository) Latest(ctx context.Context, todoID uint) (*model.TodoInstance, error) {
	var instance model.TodoInstance
	err := r.db.WithContext(ctx).Where("todo_id = ?", todoID).
		Order("due_date DESC").
		Limit(1).
		Take(&instance).Error
	switch {
	case err == nil:
		return &instance, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("latest instance: %w", err)
	}
}

func (r *InstanceRepository) ExistsOn(ctx context.Context, todoID uint, dueDate string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.TodoInstance{}).
		Where("todo_id = ? AND due_date = ?", todoID, dueDate).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check instance: %w", err)
	}
	return count > 0, nil
}

// Insert stores an open instance. It returns false when the (todo, date)
// pair already exists; the unique index turns that into a no-op.
func (r *InstanceRepository) Insert(ctx context.Context, todoID uint, dueDate string) (bool, error) {
	instance := model.TodoInstance{TodoID: todoID, DueDate: dueDate, Complete: false}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&instance)
	if res.Error != nil {
		return false, fmt.Errorf("insert instance: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// InsertIfMissing checks for an instance on dueDate and inserts one when absent.
func (r *InstanceRepository) InsertIfMissing(ctx context.Context, todoID uint, dueDate string) (bool, error) {
	exists, err := r.ExistsOn(ctx, todoID, dueDate)
	if err != nil || exists {
		return false, err
	}
	return r.Insert(ctx, todoID, dueDate)
}

func (r *InstanceRepository) ListByTodo(ctx context.Context, todoID uint) ([]model.TodoInstance, error) {
	var instances []model.TodoInstance
	if err := r.db.WithContext(ctx).Where("todo_id = ?", todoID).Order("due_date ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// FindForUser loads an instance whose parent todo belongs to userID.
func (r *InstanceRepository) FindForUser(ctx context.Context, userID, instanceID uint) (*model.TodoInstance, error) {
	var instance model.TodoInstance
	if err := r.db.WithContext(ctx).
		Joins("JOIN todos ON todos.id = todo_instances.todo_id").
		Where("todo_instances.id = ? AND todos.user_id = ?", instanceID, userID).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *InstanceRepository) SetComplete(ctx context.Context, instance *model.TodoInstance, complete bool) error {
	if err := r.db.WithContext(ctx).Model(instance).Update("complete", complete).Error; err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	return nil
}
