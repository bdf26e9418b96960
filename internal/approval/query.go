package approval

import (
	"context"

	"plantops-backend/internal/auth"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store"
)

// Filter narrows FindAll.
type Filter struct {
	Status         string
	EntityType     string
	IncludeDeleted bool
}

// FindOne loads a request with its audit trail, oldest entry first.
func (s *Service) FindOne(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	return s.store.GetApproval(ctx, id, true)
}

// FindAll lists requests newest first.
func (s *Service) FindAll(ctx context.Context, f Filter) ([]model.ApprovalRequest, error) {
	return s.store.ListApprovals(ctx, store.ApprovalFilter{
		Status:         f.Status,
		EntityType:     f.EntityType,
		IncludeDeleted: f.IncludeDeleted,
	})
}

// FindMine lists the actor's own live requests.
func (s *Service) FindMine(ctx context.Context, actor auth.Actor) ([]model.ApprovalRequest, error) {
	return s.store.ListApprovals(ctx, store.ApprovalFilter{RequesterID: actor.ID})
}

// History returns the audit trail of a request, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]model.ApprovalLog, error) {
	if _, err := s.store.GetApproval(ctx, id, false); err != nil {
		return nil, err
	}
	return s.store.ApprovalHistory(ctx, id)
}
