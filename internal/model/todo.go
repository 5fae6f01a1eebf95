package model

import "time"

// Todo is a user-owned item due on a calendar date. Recurring todos get
// materialized TodoInstance rows, one per occurrence.
type Todo struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"index" json:"user_id"`
	CategoryID        *uint          `gorm:"index" json:"category_id,omitempty"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	Details           string         `json:"details,omitempty"`
	DueDate           string         `gorm:"size:10;index" json:"due_date"`
	Recurring         bool           `gorm:"default:false;index" json:"recurring"`
	RecurringSchedule string         `json:"recurring_schedule,omitempty"` // daily|weekly|monthly|yearly|N
	Complete          bool           `gorm:"default:false" json:"complete"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Category          *Category      `json:"category,omitempty"`
	Instances         []TodoInstance `gorm:"foreignKey:TodoID" json:"instances,omitempty"`
}

// TodoInstance is one dated occurrence of a recurring todo.
type TodoInstance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TodoID    uint      `gorm:"not null;uniqueIndex:idx_todo_instance_due_date" json:"todo_id"`
	DueDate   string    `gorm:"size:10;not null;uniqueIndex:idx_todo_instance_due_date;index" json:"due_date"`
	Complete  bool      `gorm:"default:false" json:"complete"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
