package users

import (
	"strings"
	"time"
)

// User is the local record of a session subject. Pastes and folders reference ID.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:190"`
	Username    string    `gorm:"column:username;size:150;not null;uniqueIndex"`
	Email       string    `gorm:"column:email;size:320"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	Staff       bool      `gorm:"column:is_staff;not null"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created;not null"`
	UpdatedAt   time.Time `gorm:"column:modified;not null"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
