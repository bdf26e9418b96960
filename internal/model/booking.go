package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking status labels the service itself writes. Other values are accepted
// from clients as free-form text.
const (
	BookingPending   = "PENDING"
	BookingApproved  = "APPROVED"
	BookingCancelled = "CANCELLED"
)

// Booking is a supplier truck delivery booked into an intake time slot.
type Booking struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	QueueNo     int       `gorm:"not null" json:"queueNo"`
	BookingCode string    `gorm:"size:128;not null;uniqueIndex" json:"bookingCode"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	StartTime   string    `gorm:"size:5;not null" json:"startTime"`
	EndTime     string    `gorm:"size:5;not null" json:"endTime"`
	Slot        string    `gorm:"size:16;index" json:"slot"`

	SupplierID      string   `gorm:"size:64;not null" json:"supplierId"`
	SupplierCode    string   `gorm:"size:64" json:"supplierCode"`
	SupplierName    string   `gorm:"size:256" json:"supplierName"`
	TruckType       *string  `gorm:"size:64" json:"truckType"`
	TruckRegister   *string  `gorm:"size:64" json:"truckRegister"`
	RubberType      string   `gorm:"size:64;not null" json:"rubberType"`
	RubberSource    *string  `gorm:"size:128" json:"rubberSource"`
	LotNo           *string  `gorm:"size:64" json:"lotNo"`
	EstimatedWeight *float64 `json:"estimatedWeight"`
	Recorder        string   `gorm:"size:128" json:"recorder"`
	Note            *string  `json:"note"`

	Moisture     *float64 `json:"moisture"`
	DrcEst       *float64 `json:"drcEst"`
	DrcRequested *float64 `json:"drcRequested"`
	DrcActual    *float64 `json:"drcActual"`
	CpAvg        *float64 `json:"cpAvg"`
	Grade        *string  `gorm:"size:32" json:"grade"`

	TrailerRubberType   *string  `gorm:"size:64" json:"trailerRubberType"`
	TrailerRubberSource *string  `gorm:"size:128" json:"trailerRubberSource"`
	TrailerLotNo        *string  `gorm:"size:64" json:"trailerLotNo"`
	TrailerMoisture     *float64 `json:"trailerMoisture"`
	TrailerDrcEst       *float64 `json:"trailerDrcEst"`
	TrailerDrcRequested *float64 `json:"trailerDrcRequested"`
	TrailerDrcActual    *float64 `json:"trailerDrcActual"`
	TrailerCpAvg        *float64 `json:"trailerCpAvg"`
	TrailerGrade        *string  `gorm:"size:32" json:"trailerGrade"`

	WeightIn         *float64 `json:"weightIn"`
	WeightInBy       *string  `gorm:"size:128" json:"weightInBy"`
	WeightOut        *float64 `json:"weightOut"`
	WeightOutBy      *string  `gorm:"size:128" json:"weightOutBy"`
	TrailerWeightIn  *float64 `json:"trailerWeightIn"`
	TrailerWeightOut *float64 `json:"trailerWeightOut"`

	Status     string     `gorm:"size:32;not null;default:PENDING" json:"status"`
	ApprovedBy *string    `gorm:"size:128" json:"approvedBy"`
	ApprovedAt *time.Time `json:"approvedAt"`

	CheckinAt    *time.Time `json:"checkinAt"`
	CheckedInBy  *string    `gorm:"size:128" json:"checkedInBy"`
	StartDrainAt *time.Time `json:"startDrainAt"`
	StartDrainBy *string    `gorm:"size:128" json:"startDrainBy"`
	StopDrainAt  *time.Time `json:"stopDrainAt"`
	StopDrainBy  *string    `gorm:"size:128" json:"stopDrainBy"`
	DrainNote    *string    `json:"drainNote"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"deletedAt"`
	DeletedBy *string    `gorm:"size:128" json:"deletedBy"`

	// Associations
	LabSamples []BookingLabSample `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"labSamples,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// IsDeleted reports whether the booking has been cancelled.
func (b *Booking) IsDeleted() bool {
	return b.DeletedAt != nil
}
