package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Approval request statuses. PENDING is the only non-terminal state apart
// from APPROVED, which may still be voided.
const (
	ApprovalPending   = "PENDING"
	ApprovalApproved  = "APPROVED"
	ApprovalRejected  = "REJECTED"
	ApprovalReturned  = "RETURNED"
	ApprovalCancelled = "CANCELLED"
	ApprovalVoid      = "VOID"
	ApprovalExpired   = "EXPIRED"
)

// Audit log actions.
const (
	LogCreated   = "CREATED"
	LogApproved  = "APPROVED"
	LogRejected  = "REJECTED"
	LogReturned  = "RETURNED"
	LogCancelled = "CANCELLED"
	LogVoided    = "VOIDED"
	LogExpired   = "EXPIRED"
	LogDeleted   = "DELETED"
)

// ApprovalRequest is a proposal to change some domain entity, gated by an
// approver. EntityType/EntityID point at the governed record opaquely.
type ApprovalRequest struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	RequestType  string     `gorm:"size:64;not null" json:"requestType"`
	EntityType   string     `gorm:"size:64;not null;index" json:"entityType"`
	EntityID     string     `gorm:"size:64;not null" json:"entityId"`
	SourceApp    string     `gorm:"size:64;not null" json:"sourceApp"`
	ActionType   string     `gorm:"size:64;not null" json:"actionType"`
	CurrentData  Payload    `gorm:"type:text" json:"currentData"`
	ProposedData Payload    `gorm:"type:text" json:"proposedData"`
	Reason       *string    `json:"reason"`
	Priority     string     `gorm:"size:16;not null;default:NORMAL" json:"priority"`
	Status       string     `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	RequesterID  string     `gorm:"size:64;not null;index" json:"requesterId"`
	ApproverID   *string    `gorm:"size:64" json:"approverId"`
	SubmittedAt  time.Time  `gorm:"not null" json:"submittedAt"`
	ActedAt      *time.Time `json:"actedAt"`
	ExpiresAt    *time.Time `gorm:"index" json:"expiresAt"`
	Remark       *string    `json:"remark"`
	DeletedAt    *time.Time `gorm:"index" json:"deletedAt"`
	DeletedBy    *string    `gorm:"size:64" json:"deletedBy"`

	// Associations
	Logs []ApprovalLog `gorm:"foreignKey:ApprovalRequestID" json:"logs,omitempty"`
}

func (r *ApprovalRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ApprovalLog is an append-only audit row. Actor fields are copied at the time
// of the action and never joined against live user data.
type ApprovalLog struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ApprovalRequestID string    `gorm:"size:36;not null;index" json:"approvalRequestId"`
	Action            string    `gorm:"size:16;not null" json:"action"`
	OldValue          Payload   `gorm:"type:text" json:"oldValue"`
	NewValue          Payload   `gorm:"type:text" json:"newValue"`
	ActorID           string    `gorm:"size:64;not null" json:"actorId"`
	ActorName         string    `gorm:"size:256;not null" json:"actorName"`
	ActorRole         string    `gorm:"size:64;not null" json:"actorRole"`
	Remark            *string   `json:"remark"`
	IPAddress         *string   `gorm:"size:64" json:"ipAddress"`
	UserAgent         *string   `gorm:"size:512" json:"userAgent"`
	CreatedAt         time.Time `gorm:"not null" json:"createdAt"`
}
