package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is an in-app message addressed to a single user.
type Notification struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:64;not null;index" json:"userId"`
	Title      string    `gorm:"size:256;not null" json:"title"`
	Message    string    `gorm:"not null" json:"message"`
	SourceApp  string    `gorm:"size:64" json:"sourceApp"`
	ActionType string    `gorm:"size:64" json:"actionType"`
	EntityID   string    `gorm:"size:64" json:"entityId"`
	ActionURL  string    `gorm:"size:512" json:"actionUrl"`
	IsRead     bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt  time.Time `gorm:"not null;index" json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
