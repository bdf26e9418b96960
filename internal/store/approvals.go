package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"plantops-backend/internal/model"
)

// ApprovalFilter narrows ListApprovals.
type ApprovalFilter struct {
	Status         string
	EntityType     string
	RequesterID    string
	IncludeDeleted bool
}

func (s *gormStore) CreateApproval(ctx context.Context, r *model.ApprovalRequest) error {
	return translate(s.db.WithContext(ctx).Create(r).Error, "approval request")
}

func (s *gormStore) GetApproval(ctx context.Context, id string, withLogs bool) (*model.ApprovalRequest, error) {
	q := s.db.WithContext(ctx)
	if withLogs {
		q = q.Preload("Logs", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
	}
	var r model.ApprovalRequest
	if err := q.First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err, "approval request "+id)
	}
	return &r, nil
}

// ListApprovals returns requests newest first.
func (s *gormStore) ListApprovals(ctx context.Context, f ApprovalFilter) ([]model.ApprovalRequest, error) {
	q := s.db.WithContext(ctx)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if !f.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}

	var requests []model.ApprovalRequest
	if err := q.Order("submitted_at DESC").Find(&requests).Error; err != nil {
		return nil, translate(err, "approval requests")
	}
	return requests, nil
}

// TransitionApproval updates a live request only while it is still in status
// from. It reports false when another writer got there first.
func (s *gormStore) TransitionApproval(ctx context.Context, id, from string, fields map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, translate(res.Error, "approval request "+id)
	}
	return res.RowsAffected == 1, nil
}

// MarkApprovalDeleted sets the soft-delete marker once. It reports false when
// the request was already deleted.
func (s *gormStore) MarkApprovalDeleted(ctx context.Context, id, by string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{"deleted_at": at, "deleted_by": by})
	if res.Error != nil {
		return false, translate(res.Error, "approval request "+id)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) AppendApprovalLog(ctx context.Context, l *model.ApprovalLog) error {
	return translate(s.db.WithContext(ctx).Create(l).Error, "approval log for "+l.ApprovalRequestID)
}

// ApprovalHistory returns the audit trail oldest first.
func (s *gormStore) ApprovalHistory(ctx context.Context, id string) ([]model.ApprovalLog, error) {
	var logs []model.ApprovalLog
	err := s.db.WithContext(ctx).
		Where("approval_request_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, translate(err, "history of approval request "+id)
	}
	return logs, nil
}

// ExpiredApprovals selects live PENDING requests whose expiry has passed.
func (s *gormStore) ExpiredApprovals(ctx context.Context, now time.Time) ([]model.ApprovalRequest, error) {
	var requests []model.ApprovalRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ? AND deleted_at IS NULL", model.ApprovalPending, now).
		Order("expires_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, translate(err, "expired approval requests")
	}
	return requests, nil
}
