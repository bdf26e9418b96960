package internal

import (
	"context"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantops-backend/internal/approval"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/booking"
	"plantops-backend/internal/model"
	"plantops-backend/internal/notification"
	"plantops-backend/internal/store/storetest"
)

// TestBookingEditApprovalLifecycle walks a booking from allocation through an
// approved edit request whose hook patches the booking, and checks that every
// step reaches the notification inbox of the right users.
func TestBookingEditApprovalLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, gdb := storetest.New(t)
	require.NoError(t, gdb.Create(&[]model.User{
		{ID: "u-admin", Username: "admin", DisplayName: "Plant Admin", Role: "ADMIN"},
		{ID: "u-clerk", Username: "clerk", DisplayName: "Gate Clerk", Role: "CLERK"},
	}).Error)

	workers := notification.NewWorkerPool(2, 64, s, &webpush.Options{})
	workers.Start(ctx)

	authz := auth.NewRoleAuthorizer("ADMIN")
	bookings := booking.NewService(s, workers, booking.Options{NotifyRoles: []string{"ADMIN"}})
	approvals := approval.NewService(s, workers, authz, nil, approval.Options{AdminRoles: []string{"ADMIN"}})

	admin := auth.Actor{ID: "u-admin", Username: "admin", Role: "ADMIN"}
	clerk := auth.Actor{ID: "u-clerk", Username: "clerk", Role: "CLERK"}

	approvals.Hooks().Register("booking", "UPDATE", approval.ApplierFunc(func(ctx context.Context, req *model.ApprovalRequest) error {
		_, err := bookings.Update(ctx, req.EntityID, req.ProposedData, admin)
		return err
	}))

	// 1. Allocate two bookings in the same slot.
	first, err := bookings.Allocate(ctx, booking.AllocateInput{
		Date: "2024-06-03", StartTime: "08:00", EndTime: "09:00",
		SupplierID: "sup-1", SupplierName: "Somsak Rubber", RubberType: "Cuplump",
	}, clerk)
	require.NoError(t, err)
	second, err := bookings.Allocate(ctx, booking.AllocateInput{
		Date: "2024-06-03", StartTime: "08:00", EndTime: "09:00",
		SupplierID: "sup-2", SupplierName: "Napa Latex", RubberType: "Cuplump",
	}, clerk)
	require.NoError(t, err)
	assert.Equal(t, "C24060301", first.BookingCode)
	assert.Equal(t, "C24060302", second.BookingCode)

	// 2. Cancelling the first frees its queue number for the next request.
	_, err = bookings.Remove(ctx, first.ID, admin)
	require.NoError(t, err)
	third, err := bookings.Allocate(ctx, booking.AllocateInput{
		Date: "2024-06-03", StartTime: "08:00", EndTime: "09:00",
		SupplierID: "sup-3", SupplierName: "Chai Farm", RubberType: "Cuplump",
	}, clerk)
	require.NoError(t, err)
	assert.Equal(t, 1, third.QueueNo)
	assert.Equal(t, "C24060301", third.BookingCode)

	// 3. The clerk asks for a correction; the admin approves and the hook
	// applies it.
	req, err := approvals.Create(ctx, clerk, approval.CreateInput{
		RequestType:  "BOOKING_EDIT",
		EntityType:   "booking",
		EntityID:     second.ID,
		SourceApp:    "BOOKINGS",
		ActionType:   "UPDATE",
		CurrentData:  model.Payload{"note": nil},
		ProposedData: model.Payload{"note": "arrives late", "silent": true},
	}, approval.Audit{})
	require.NoError(t, err)

	_, err = approvals.Approve(ctx, req.ID, admin, nil, approval.Audit{})
	require.NoError(t, err)

	patched, err := bookings.Get(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, patched.Note)
	assert.Equal(t, "arrives late", *patched.Note)

	history, err := approvals.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Gate Clerk", history[0].ActorName)
	assert.Equal(t, "Plant Admin", history[1].ActorName)

	// 4. Admins hear about bookings and the request; the clerk hears the verdict.
	assert.Eventually(t, func() bool {
		adminInbox, err := s.ListNotifications(context.Background(), "u-admin", false, 0)
		if err != nil || len(adminInbox) < 5 { // 3 creates, 1 cancel, 1 approval request
			return false
		}
		clerkInbox, err := s.ListNotifications(context.Background(), "u-clerk", false, 0)
		return err == nil && len(clerkInbox) == 1 && clerkInbox[0].ActionType == model.LogApproved
	}, 3*time.Second, 20*time.Millisecond)
}
