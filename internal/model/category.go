package model

import "time"

// Category groups todos by area (work, health, study, etc.).
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;index:idx_user_category_name,unique" json:"user_id"`
	Name      string    `gorm:"size:255;index:idx_user_category_name,unique" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Todos     []Todo    `gorm:"foreignKey:CategoryID" json:"todos,omitempty"`
}
