package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/model"
	"plantops-backend/internal/notification"
	"plantops-backend/internal/store"
	"plantops-backend/internal/store/storetest"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, msg notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingNotifier) last() notification.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

var (
	requester = auth.Actor{ID: "u-req", Username: "somchai", Role: "CLERK"}
	approver  = auth.Actor{ID: "u-mgr", Username: "manager", Role: "MANAGER", Permissions: []string{auth.ActionApprovalsApprove}}
	admin     = auth.Actor{ID: "u-admin", Username: "admin", Role: "ADMIN"}
	stranger  = auth.Actor{ID: "u-other", Username: "other", Role: "CLERK", Permissions: []string{auth.ActionApprovalsApprove}}
)

type fixture struct {
	svc      *Service
	store    store.Store
	db       *gorm.DB
	notifier *recordingNotifier
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, gdb := storetest.New(t)
	require.NoError(t, gdb.Create(&[]model.User{
		{ID: "u-admin", Username: "admin", DisplayName: "Plant Admin", Role: "ADMIN"},
		{ID: "u-mgr", Username: "manager", Email: "mgr@example.com", Role: "MANAGER"},
		{ID: "u-req", Username: "somchai", DisplayName: "Somchai", Role: "CLERK"},
	}).Error)

	f := &fixture{store: s, db: gdb, notifier: &recordingNotifier{}}
	f.clock = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	f.svc = NewService(s, f.notifier, auth.NewRoleAuthorizer("ADMIN"), nil, Options{
		AdminRoles: []string{"ADMIN"},
		Now:        func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) create(t *testing.T, expiresAt *time.Time) *model.ApprovalRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), requester, CreateInput{
		RequestType:  "BOOKING_EDIT",
		EntityType:   "booking",
		EntityID:     "b-1",
		SourceApp:    "BOOKINGS",
		ActionType:   "UPDATE",
		CurrentData:  model.Payload{"truckRegister": "70-1234"},
		ProposedData: model.Payload{"truckRegister": "70-9999"},
		ExpiresAt:    expiresAt,
	}, Audit{IPAddress: "10.0.0.7", UserAgent: "test"})
	require.NoError(t, err)
	return req
}

func (f *fixture) history(t *testing.T, id string) []string {
	t.Helper()
	logs, err := f.svc.History(context.Background(), id)
	require.NoError(t, err)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

func TestCreate_LogsAndNotifiesAdmins(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, nil)

	assert.Equal(t, model.ApprovalPending, req.Status)
	assert.Equal(t, "NORMAL", req.Priority)
	assert.Equal(t, "u-req", req.RequesterID)
	assert.Nil(t, req.ExpiresAt)

	logs, err := f.svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.LogCreated, logs[0].Action)
	assert.Equal(t, "Somchai", logs[0].ActorName)
	assert.Equal(t, "CLERK", logs[0].ActorRole)
	assert.Equal(t, model.ApprovalPending, logs[0].NewValue["status"])
	require.NotNil(t, logs[0].IPAddress)
	assert.Equal(t, "10.0.0.7", *logs[0].IPAddress)

	msg := f.notifier.last()
	assert.Equal(t, []string{"u-admin"}, msg.UserIDs)
	assert.Equal(t, "APPROVALS", msg.SourceApp)
	assert.Equal(t, req.ID, msg.EntityID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.clock.Add(-time.Minute)

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing fields", CreateInput{RequestType: "X"}},
		{"bad priority", CreateInput{RequestType: "X", EntityType: "e", EntityID: "1", SourceApp: "s", ActionType: "a", Priority: "whenever"}},
		{"expiry in the past", CreateInput{RequestType: "X", EntityType: "e", EntityID: "1", SourceApp: "s", ActionType: "a", ExpiresAt: &past}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, requester, tc.in, Audit{})
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}

	_, err := f.svc.Create(ctx, requester, CreateInput{RequestType: "X", EntityType: " ", EntityID: "1"}, Audit{})
	require.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, "missing required fields: entityType, sourceApp, actionType", apperr.MessageOf(err))

	_, err = f.svc.Create(ctx, auth.Actor{}, CreateInput{}, Audit{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestCreate_DefaultExpiry(t *testing.T) {
	f := newFixture(t)
	f.svc.defaultExpiry = 48 * time.Hour
	req := f.create(t, nil)
	require.NotNil(t, req.ExpiresAt)
	assert.True(t, req.ExpiresAt.Equal(f.clock.Add(48*time.Hour)))
}

func TestApprove_HistoryInOrder(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, nil)
	f.clock = f.clock.Add(time.Minute)

	out, err := f.svc.Approve(context.Background(), req.ID, approver, nil, Audit{})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, out.Status)
	require.NotNil(t, out.ApproverID)
	assert.Equal(t, "u-mgr", *out.ApproverID)

	assert.Equal(t, []string{model.LogCreated, model.LogApproved}, f.history(t, req.ID))

	full, err := f.svc.FindOne(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, full.Logs, 2)
	// No display name on file, so the email is captured.
	assert.Equal(t, "mgr@example.com", full.Logs[1].ActorName)
	assert.Equal(t, "MANAGER", full.Logs[1].ActorRole)

	msg := f.notifier.last()
	assert.Equal(t, []string{"u-req"}, msg.UserIDs)
	assert.Equal(t, model.LogApproved, msg.ActionType)
}

func TestApprove_NotPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, nil)
	_, err := f.svc.Reject(ctx, req.ID, approver, "wrong truck", Audit{})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, req.ID, approver, nil, Audit{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidStateTransition), "got %v", err)
	assert.Equal(t, []string{model.LogCreated, model.LogRejected}, f.history(t, req.ID))
}

func TestApprove_RequiresAuthority(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, nil)
	_, err := f.svc.Approve(context.Background(), req.ID, requester, nil, Audit{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestRejectAndReturn_RequireRemark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, nil)

	_, err := f.svc.Reject(ctx, req.ID, approver, "  ", Audit{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = f.svc.Return(ctx, req.ID, approver, "", Audit{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	out, err := f.svc.Return(ctx, req.ID, approver, "attach the weigh slip", Audit{})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalReturned, out.Status)
	require.NotNil(t, out.Remark)
	assert.Equal(t, "attach the weigh slip", *out.Remark)
}

func TestCancel_OnlyRequester(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, nil)

	_, err := f.svc.Cancel(ctx, req.ID, stranger, nil, Audit{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Equal(t, []string{model.LogCreated}, f.history(t, req.ID))

	out, err := f.svc.Cancel(ctx, req.ID, requester, nil, Audit{})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalCancelled, out.Status)
	assert.Nil(t, out.ApproverID)
}

func TestVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, nil)

	_, err := f.svc.Void(ctx, req.ID, admin, "entered twice", Audit{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidStateTransition), "void needs APPROVED")

	_, err = f.svc.Approve(ctx, req.ID, approver, nil, Audit{})
	require.NoError(t, err)

	_, err = f.svc.Void(ctx, req.ID, approver, "entered twice", Audit{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "permission alone cannot void")
	_, err = f.svc.Void(ctx, req.ID, admin, "", Audit{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	out, err := f.svc.Void(ctx, req.ID, admin, "entered twice", Audit{})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalVoid, out.Status)
	assert.Equal(t, []string{model.LogCreated, model.LogApproved, model.LogVoided}, f.history(t, req.ID))
}

func TestSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, nil)

	out, err := f.svc.SoftDelete(ctx, req.ID, admin, Audit{})
	require.NoError(t, err)
	require.NotNil(t, out.DeletedAt)
	assert.Equal(t, model.ApprovalPending, out.Status)

	again, err := f.svc.SoftDelete(ctx, req.ID, admin, Audit{})
	require.NoError(t, err)
	assert.NotNil(t, again.DeletedAt)
	assert.Equal(t, []string{model.LogCreated, model.LogDeleted}, f.history(t, req.ID))

	live, err := f.svc.FindAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := f.svc.FindAll(ctx, Filter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.svc.Approve(ctx, req.ID, approver, nil, Audit{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidStateTransition))
}

func TestFindMine(t *testing.T) {
	f := newFixture(t)
	f.create(t, nil)
	f.create(t, nil)

	mine, err := f.svc.FindMine(context.Background(), requester)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := f.svc.FindMine(context.Background(), stranger)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestNotifyFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("queue down")
	req := f.create(t, nil)

	out, err := f.svc.Approve(context.Background(), req.ID, approver, nil, Audit{})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, out.Status)
}

func TestApprove_RunsHook(t *testing.T) {
	f := newFixture(t)
	var applied []string
	f.svc.Hooks().Register("booking", "UPDATE", ApplierFunc(func(ctx context.Context, r *model.ApprovalRequest) error {
		applied = append(applied, r.EntityID)
		return errors.New("entity gone")
	}))
	req := f.create(t, nil)

	_, err := f.svc.Approve(context.Background(), req.ID, approver, nil, Audit{})
	require.NoError(t, err, "a failing hook does not undo the approval")
	assert.Equal(t, []string{"b-1"}, applied)

	stored, err := f.svc.FindOne(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, stored.Status)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(model.ApprovalPending, model.ApprovalExpired))
	assert.True(t, CanTransition(model.ApprovalApproved, model.ApprovalVoid))
	assert.False(t, CanTransition(model.ApprovalPending, model.ApprovalVoid))
	assert.False(t, CanTransition(model.ApprovalRejected, model.ApprovalApproved))

	assert.False(t, IsTerminal(model.ApprovalPending))
	assert.False(t, IsTerminal(model.ApprovalApproved))
	for _, s := range []string{model.ApprovalRejected, model.ApprovalReturned, model.ApprovalCancelled, model.ApprovalVoid, model.ApprovalExpired} {
		assert.True(t, IsTerminal(s), s)
	}
}
