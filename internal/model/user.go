package model

import "time"

// User stores identity metadata for both front ends.
// TelegramID is set for bot users, ExternalID for users coming through the HTTP API.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID *int64    `gorm:"uniqueIndex" json:"telegram_id,omitempty"`
	ExternalID *string   `gorm:"uniqueIndex" json:"external_id,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Username   string    `json:"username,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
