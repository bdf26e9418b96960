package booking

import (
	"context"
	"errors"
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

const sourceApp = "BOOKINGS"

// Notifier is the fire-and-forget delivery contract the service depends on.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}

// Options configures a Service.
type Options struct {
	Slots          *SlotTable
	Location       *time.Location
	MaxCodeRetries int
	NotifyRoles    []string
	Now            func() time.Time
}

// Service allocates intake bookings and drives their lifecycle.
type Service struct {
	store       store.Store
	notifier    Notifier
	slots       *SlotTable
	loc         *time.Location
	maxRetries  int
	notifyRoles []string
	now         func() time.Time
}

// NewService creates a booking service.
func NewService(s store.Store, n Notifier, opts Options) *Service {
	svc := &Service{
		store:       s,
		notifier:    n,
		slots:       opts.Slots,
		loc:         opts.Location,
		maxRetries:  opts.MaxCodeRetries,
		notifyRoles: opts.NotifyRoles,
		now:         opts.Now,
	}
	if svc.slots == nil {
		svc.slots = NewSlotTable(nil)
	}
	if svc.loc == nil {
		svc.loc = time.UTC
	}
	if svc.maxRetries <= 0 {
		svc.maxRetries = 5
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

// Slots exposes the slot table.
func (s *Service) Slots() *SlotTable {
	return s.slots
}

// Today is the current calendar day at the plant.
func (s *Service) Today() time.Time {
	return DayOf(s.now().In(s.loc))
}

// ParseDay reads a date in the plant's timezone.
func (s *Service) ParseDay(raw string) (time.Time, error) {
	day, err := ParseDay(raw, s.loc)
	if err != nil {
		return time.Time{}, apperr.Validation("%v", err)
	}
	return day, nil
}

// AllocateInput is a new booking request.
type AllocateInput struct {
	Date            string  `json:"date" binding:"required"`
	StartTime       string  `json:"startTime" binding:"required,len=5,datetime=15:04"`
	EndTime         string  `json:"endTime" binding:"required,len=5,datetime=15:04"`
	SupplierID      string  `json:"supplierId" binding:"required"`
	SupplierCode    string  `json:"supplierCode"`
	SupplierName    string  `json:"supplierName"`
	TruckType       *string `json:"truckType"`
	TruckRegister   *string `json:"truckRegister"`
	RubberType      string  `json:"rubberType"`
	EstimatedWeight any     `json:"estimatedWeight"`
	Recorder        string  `json:"recorder"`
	LotNo           *string `json:"lotNo"`
	Note            *string `json:"note"`
}

func (in *AllocateInput) validate() error {
	in.Date = strings.TrimSpace(in.Date)
	in.SupplierID = strings.TrimSpace(in.SupplierID)
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.EndTime <= in.StartTime {
		return apperr.Validation("endTime must be after startTime")
	}
	return nil
}

// Allocate assigns a queue number and booking code and stores the booking.
func (s *Service) Allocate(ctx context.Context, in AllocateInput, actor auth.Actor) (*model.Booking, error) {
	b, err := s.allocate(ctx, in, actor)
	if err != nil {
		metrics.BookingAllocationFailed(string(apperr.KindOf(err)))
		return nil, err
	}
	metrics.BookingAllocated(ClassOf(b.RubberType).Prefix)

	s.notify(ctx, "CREATE", b.ID,
		"New Booking Created",
		fmt.Sprintf("Booking %s created for %s at %s", b.BookingCode, b.SupplierName, b.Slot),
		"/bookings/"+b.BookingCode)
	return b, nil
}

func (s *Service) allocate(ctx context.Context, in AllocateInput, actor auth.Actor) (*model.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	day, err := ParseDay(in.Date, s.loc)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	slot := in.StartTime + "-" + in.EndTime
	req := request{
		Day:        day,
		Slot:       slot,
		Config:     s.slots.Resolve(slot, day),
		Class:      ClassOf(in.RubberType),
		SupplierID: in.SupplierID,
	}
	var truckRegister *string
	if in.TruckRegister != nil {
		req.TruckRegister = strings.TrimSpace(*in.TruckRegister)
		if req.TruckRegister != "" {
			truckRegister = &req.TruckRegister
		}
	}

	recorder := in.Recorder
	if recorder == "" {
		recorder = actor.Name()
	}

	var created *model.Booking
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.LockBookingSlot(ctx, lockKey(day, slot, req.Class)); err != nil {
			return err
		}
		existing, err := tx.DayBookings(ctx, day)
		if err != nil {
			return err
		}
		c, err := plan(req, existing)
		if err != nil {
			return err
		}

		b := &model.Booking{
			QueueNo:         c.QueueNo,
			BookingCode:     c.Code,
			Date:            day,
			StartTime:       in.StartTime,
			EndTime:         in.EndTime,
			Slot:            slot,
			SupplierID:      in.SupplierID,
			SupplierCode:    in.SupplierCode,
			SupplierName:    in.SupplierName,
			TruckType:       in.TruckType,
			TruckRegister:   truckRegister,
			RubberType:      in.RubberType,
			EstimatedWeight: parseFloat(in.EstimatedWeight),
			Recorder:        recorder,
			LotNo:           in.LotNo,
			Note:            in.Note,
			Status:          model.BookingPending,
		}
		if err := s.insert(ctx, tx, b, req.Class, day); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insert stores b, resolving code collisions a bounded number of times. A
// soft-deleted row holding the code is renamed out of the way once; a live
// one moves b past the highest number in use for the class and day.
func (s *Service) insert(ctx context.Context, tx store.Store, b *model.Booking, class Class, day time.Time) error {
	renamedStale := false
	for attempt := 1; ; attempt++ {
		err := tx.CreateBooking(ctx, b)
		if err == nil {
			return nil
		}
		if !store.IsUniqueViolation(err) {
			return err
		}
		if attempt > s.maxRetries {
			return apperr.DuplicateConstraint("could not allocate a unique booking code after %d attempts", attempt)
		}
		metrics.BookingCodeRetried()

		holder, err := tx.FindBookingByCode(ctx, b.BookingCode)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if holder != nil && holder.IsDeleted() && !renamedStale {
			stale := fmt.Sprintf("STALE-%s-%d", holder.BookingCode, s.now().UnixMilli())
			if err := tx.RenameBookingCode(ctx, holder.ID, stale); err != nil {
				return err
			}
			log.Printf("Renamed cancelled booking %s to %s to free its code", holder.ID, stale)
			renamedStale = true
			continue
		}

		max, err := tx.MaxQueueNo(ctx, class.Prefix+dayCode(day))
		if err != nil {
			return err
		}
		next := max + 1
		if next <= b.QueueNo {
			next = b.QueueNo + 1
		}
		b.QueueNo = next
		b.BookingCode = class.Prefix + GenCode(day, next)
	}
}

// Get loads a booking by id, cancelled ones included.
func (s *Service) Get(ctx context.Context, id string) (*model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// ListFilter narrows List. Date is a calendar date string.
type ListFilter struct {
	Date string
	Slot string
	Code string
}

// List returns bookings ordered by queue number with their lab samples.
func (s *Service) List(ctx context.Context, f ListFilter) ([]model.Booking, error) {
	filter := store.BookingFilter{Slot: f.Slot, Code: strings.TrimSpace(f.Code)}
	if f.Date != "" {
		day, err := ParseDay(f.Date, s.loc)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		filter.Date = &day
	}
	return s.store.ListBookings(ctx, filter)
}

// notify resolves the configured recipients and queues a message. Failures
// are logged and never returned.
func (s *Service) notify(ctx context.Context, action, entityID, title, message, url string) {
	if s.notifier == nil {
		return
	}
	recipients, err := s.store.UserIDsByRole(ctx, s.notifyRoles...)
	if err != nil {
		log.Printf("Booking notification %s skipped: %v", action, err)
		return
	}
	err = s.notifier.Notify(ctx, notification.Message{
		UserIDs:    recipients,
		Title:      title,
		Message:    message,
		SourceApp:  sourceApp,
		ActionType: action,
		EntityID:   entityID,
		ActionURL:  url,
	})
	if err != nil {
		log.Printf("Booking notification %s for %s failed: %v", action, entityID, err)
	}
}
