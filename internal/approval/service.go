package approval

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/metrics"
	"plantops-backend/internal/model"
	"plantops-backend/internal/notification"
	"plantops-backend/internal/store"
	"plantops-backend/internal/validate"
)

const sourceApp = "APPROVALS"

// Notifier is the fire-and-forget delivery contract the service depends on.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}

// Audit is request metadata copied into log rows.
type Audit struct {
	IPAddress string
	UserAgent string
}

// Options configures a Service.
type Options struct {
	AdminRoles    []string
	DefaultExpiry time.Duration
	Now           func() time.Time
}

// Service is the approval request state machine.
type Service struct {
	store         store.Store
	notifier      Notifier
	authz         auth.Authorizer
	hooks         *Registry
	adminRoles    []string
	defaultExpiry time.Duration
	now           func() time.Time
}

// NewService creates an approval service. hooks may be nil.
func NewService(s store.Store, n Notifier, authz auth.Authorizer, hooks *Registry, opts Options) *Service {
	svc := &Service{
		store:         s,
		notifier:      n,
		authz:         authz,
		hooks:         hooks,
		adminRoles:    opts.AdminRoles,
		defaultExpiry: opts.DefaultExpiry,
		now:           opts.Now,
	}
	if svc.hooks == nil {
		svc.hooks = NewRegistry()
	}
	if len(svc.adminRoles) == 0 {
		svc.adminRoles = []string{"ADMIN"}
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

// Hooks exposes the apply-hook registry.
func (s *Service) Hooks() *Registry {
	return s.hooks
}

// CreateInput is a new change proposal.
type CreateInput struct {
	RequestType  string        `json:"requestType" binding:"required"`
	EntityType   string        `json:"entityType" binding:"required"`
	EntityID     string        `json:"entityId" binding:"required"`
	SourceApp    string        `json:"sourceApp" binding:"required"`
	ActionType   string        `json:"actionType" binding:"required"`
	CurrentData  model.Payload `json:"currentData"`
	ProposedData model.Payload `json:"proposedData"`
	Reason       *string       `json:"reason"`
	Priority     string        `json:"priority"`
	ExpiresAt    *time.Time    `json:"expiresAt"`
}

func (in *CreateInput) normalize(now time.Time, defaultExpiry time.Duration) error {
	for _, f := range []*string{&in.RequestType, &in.EntityType, &in.EntityID, &in.SourceApp, &in.ActionType} {
		*f = strings.TrimSpace(*f)
	}
	if err := validate.Struct(in); err != nil {
		return err
	}

	in.Priority = strings.ToUpper(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = "NORMAL"
	}
	if !priorities[in.Priority] {
		return apperr.Validation("invalid priority %q", in.Priority)
	}

	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		if !t.After(now) {
			return apperr.Validation("expiresAt must be in the future")
		}
		in.ExpiresAt = &t
	} else if defaultExpiry > 0 {
		t := now.Add(defaultExpiry)
		in.ExpiresAt = &t
	}
	if in.CurrentData == nil {
		in.CurrentData = model.Payload{}
	}
	if in.ProposedData == nil {
		in.ProposedData = model.Payload{}
	}
	return nil
}

// Create stores a PENDING request, logs CREATED and tells every admin.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput, audit Audit) (*model.ApprovalRequest, error) {
	if actor.ID == "" {
		return nil, apperr.Forbidden("an authenticated requester is required")
	}
	now := s.now()
	if err := in.normalize(now, s.defaultExpiry); err != nil {
		return nil, err
	}

	req := &model.ApprovalRequest{
		RequestType:  in.RequestType,
		EntityType:   in.EntityType,
		EntityID:     in.EntityID,
		SourceApp:    in.SourceApp,
		ActionType:   in.ActionType,
		CurrentData:  in.CurrentData,
		ProposedData: in.ProposedData,
		Reason:       in.Reason,
		Priority:     in.Priority,
		Status:       model.ApprovalPending,
		RequesterID:  actor.ID,
		SubmittedAt:  now,
		ExpiresAt:    in.ExpiresAt,
	}
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateApproval(ctx, req); err != nil {
			return err
		}
		entry := s.logEntry(ctx, tx, req.ID, model.LogCreated, actor, audit, now)
		entry.NewValue = model.Payload{"status": model.ApprovalPending}
		entry.Remark = in.Reason
		return tx.AppendApprovalLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	metrics.ApprovalTransition(model.LogCreated)

	admins, err := s.store.UserIDsByRole(ctx, s.adminRoles...)
	if err != nil {
		log.Printf("Could not resolve approvers for request %s: %v", req.ID, err)
	} else {
		s.notify(ctx, admins, req, "APPROVAL_REQUEST", "New approval request",
			fmt.Sprintf("Approval requested: %s", req.RequestType))
	}
	return req, nil
}

// Approve moves a PENDING request to APPROVED and runs its apply hook.
func (s *Service) Approve(ctx context.Context, id string, actor auth.Actor, remark *string, audit Audit) (*model.ApprovalRequest, error) {
	if !s.authz.IsAuthorized(actor, auth.ActionApprovalsApprove) {
		return nil, apperr.Forbidden("approval authority required")
	}
	req, err := s.transition(ctx, id, actor, approveTransition, remark, audit, true, nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, []string{req.RequesterID}, req, model.LogApproved, "Request approved",
		fmt.Sprintf("Your %s request has been approved", req.RequestType))
	s.hooks.Apply(ctx, req)
	return req, nil
}

// Reject moves a PENDING request to REJECTED. A remark is required.
func (s *Service) Reject(ctx context.Context, id string, actor auth.Actor, remark string, audit Audit) (*model.ApprovalRequest, error) {
	if !s.authz.IsAuthorized(actor, auth.ActionApprovalsApprove) {
		return nil, apperr.Forbidden("approval authority required")
	}
	if strings.TrimSpace(remark) == "" {
		return nil, apperr.Validation("a remark is required to reject a request")
	}
	req, err := s.transition(ctx, id, actor, rejectTransition, &remark, audit, true, nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, []string{req.RequesterID}, req, model.LogRejected, "Request rejected",
		fmt.Sprintf("Your %s request was rejected: %s", req.RequestType, remark))
	return req, nil
}

// Return sends a PENDING request back to its requester. A remark is required.
func (s *Service) Return(ctx context.Context, id string, actor auth.Actor, remark string, audit Audit) (*model.ApprovalRequest, error) {
	if !s.authz.IsAuthorized(actor, auth.ActionApprovalsApprove) {
		return nil, apperr.Forbidden("approval authority required")
	}
	if strings.TrimSpace(remark) == "" {
		return nil, apperr.Validation("a remark is required to return a request")
	}
	req, err := s.transition(ctx, id, actor, returnTransition, &remark, audit, true, nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, []string{req.RequesterID}, req, model.LogReturned, "Request returned",
		fmt.Sprintf("Your %s request was returned for changes: %s", req.RequestType, remark))
	return req, nil
}

// Cancel withdraws a PENDING request. Only its requester may do so.
func (s *Service) Cancel(ctx context.Context, id string, actor auth.Actor, reason *string, audit Audit) (*model.ApprovalRequest, error) {
	return s.transition(ctx, id, actor, cancelTransition, reason, audit, false, func(r *model.ApprovalRequest) error {
		if !s.authz.IsRequester(actor, r.RequesterID) {
			return apperr.Forbidden("Only the requester can cancel this request")
		}
		return nil
	})
}

// Void annuls an APPROVED request. It needs admin authority and a reason.
func (s *Service) Void(ctx context.Context, id string, actor auth.Actor, reason string, audit Audit) (*model.ApprovalRequest, error) {
	if !s.authz.IsAuthorized(actor, auth.ActionApprovalsVoid) {
		return nil, apperr.Forbidden("admin authority required to void a request")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Validation("a reason is required to void a request")
	}
	req, err := s.transition(ctx, id, actor, voidTransition, &reason, audit, false, nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, []string{req.RequesterID}, req, model.LogVoided, "Request voided",
		fmt.Sprintf("Your %s request was voided: %s", req.RequestType, reason))
	return req, nil
}

// SoftDelete hides a request from default listings without touching its
// status. Deleting an already deleted request changes nothing.
func (s *Service) SoftDelete(ctx context.Context, id string, actor auth.Actor, audit Audit) (*model.ApprovalRequest, error) {
	var out *model.ApprovalRequest
	deleted := false
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		req, err := tx.GetApproval(ctx, id, false)
		if err != nil {
			return err
		}
		if req.DeletedAt != nil {
			out = req
			return nil
		}

		now := s.now()
		ok, err := tx.MarkApprovalDeleted(ctx, id, actor.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			out = req
			return nil
		}
		entry := s.logEntry(ctx, tx, id, model.LogDeleted, actor, audit, now)
		entry.OldValue = model.Payload{"deletedAt": nil}
		entry.NewValue = model.Payload{"deletedAt": now.Format(time.RFC3339Nano)}
		if err := tx.AppendApprovalLog(ctx, entry); err != nil {
			return err
		}
		deleted = true
		req.DeletedAt = &now
		by := actor.ID
		req.DeletedBy = &by
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deleted {
		metrics.ApprovalTransition(model.LogDeleted)
	}
	return out, nil
}

// transition performs one status change: check runs first, then the status
// precondition, then a conditional update and exactly one log row.
func (s *Service) transition(ctx context.Context, id string, actor auth.Actor, t transition, remark *string, audit Audit, setApprover bool, check func(r *model.ApprovalRequest) error) (*model.ApprovalRequest, error) {
	var out *model.ApprovalRequest
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		req, err := tx.GetApproval(ctx, id, false)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(req); err != nil {
				return err
			}
		}
		if req.DeletedAt != nil {
			return apperr.InvalidStateTransition("approval request %s has been deleted", id)
		}
		if req.Status != t.from {
			return apperr.InvalidStateTransition("Only %s requests can be moved to %s (current status %s)", strings.ToLower(t.from), t.to, req.Status)
		}

		now := s.now()
		fields := map[string]any{
			"status":   t.to,
			"acted_at": now,
			"remark":   remark,
		}
		if setApprover {
			fields["approver_id"] = actor.ID
		}
		ok, err := tx.TransitionApproval(ctx, id, t.from, fields)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidStateTransition("approval request %s is no longer %s", id, t.from)
		}

		entry := s.logEntry(ctx, tx, id, t.log, actor, audit, now)
		entry.OldValue = model.Payload{"status": t.from}
		entry.NewValue = model.Payload{"status": t.to}
		entry.Remark = remark
		if err := tx.AppendApprovalLog(ctx, entry); err != nil {
			return err
		}

		req.Status = t.to
		req.ActedAt = &now
		req.Remark = remark
		if setApprover {
			approver := actor.ID
			req.ApproverID = &approver
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ApprovalTransition(t.log)
	return out, nil
}

// logEntry builds an audit row with the actor's name and role as the
// directory knows them right now, falling back to the token's claims.
func (s *Service) logEntry(ctx context.Context, tx store.Store, requestID, action string, actor auth.Actor, audit Audit, at time.Time) *model.ApprovalLog {
	name, role := actor.DisplayName, actor.RoleOrDefault()
	if name == "" {
		name = actor.Username
	}
	if name == "" {
		name = actor.ID
	}
	if actor.ID != auth.SystemActor.ID {
		if u, err := tx.FindUser(ctx, actor.ID); err == nil {
			switch {
			case u.DisplayName != "":
				name = u.DisplayName
			case u.Email != "":
				name = u.Email
			}
			if u.Role != "" {
				role = u.Role
			}
		}
	}

	entry := &model.ApprovalLog{
		ApprovalRequestID: requestID,
		Action:            action,
		ActorID:           actor.ID,
		ActorName:         name,
		ActorRole:         role,
		OldValue:          model.Payload{},
		NewValue:          model.Payload{},
		CreatedAt:         at,
	}
	if audit.IPAddress != "" {
		ip := audit.IPAddress
		entry.IPAddress = &ip
	}
	if audit.UserAgent != "" {
		ua := audit.UserAgent
		entry.UserAgent = &ua
	}
	return entry
}

func (s *Service) notify(ctx context.Context, userIDs []string, req *model.ApprovalRequest, action, title, message string) {
	if s.notifier == nil || len(userIDs) == 0 {
		return
	}
	err := s.notifier.Notify(ctx, notification.Message{
		UserIDs:    userIDs,
		Title:      title,
		Message:    message,
		SourceApp:  sourceApp,
		ActionType: action,
		EntityID:   req.ID,
		ActionURL:  "/approvals/" + req.ID,
	})
	if err != nil {
		log.Printf("Approval notification %s for %s failed: %v", action, req.ID, err)
	}
}
