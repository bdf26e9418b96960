package model

import "time"

// User is the read-only directory entry used to resolve notification
// recipients by role. Profiles are managed outside this service.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Username    string    `gorm:"size:128;uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"size:256" json:"displayName"`
	Email       string    `gorm:"size:256" json:"email"`
	Role        string    `gorm:"size:64;not null;index" json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
