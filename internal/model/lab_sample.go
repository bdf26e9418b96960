package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingLabSample is one lab measurement row taken from a booking's load.
// IsTrailer separates the main truck channel from the trailer channel.
type BookingLabSample struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	BookingID string `gorm:"size:36;not null;index:idx_sample_booking_channel" json:"bookingId"`
	SampleNo  int    `gorm:"not null" json:"sampleNo"`
	IsTrailer bool   `gorm:"not null;default:false;index:idx_sample_booking_channel" json:"isTrailer"`

	BeforePress   *float64 `json:"beforePress"`
	BasketWeight  *float64 `json:"basketWeight"`
	CuplumpWeight *float64 `json:"cuplumpWeight"`
	AfterPress    *float64 `json:"afterPress"`
	PercentCp     *float64 `json:"percentCp"`

	BeforeBaking1     *float64 `gorm:"column:before_baking_1" json:"beforeBaking1"`
	AfterDryerB1      *float64 `json:"afterDryerB1"`
	BeforeLabDryerB1  *float64 `json:"beforeLabDryerB1"`
	AfterLabDryerB1   *float64 `json:"afterLabDryerB1"`
	DrcB1             *float64 `json:"drcB1"`
	MoisturePercentB1 *float64 `json:"moisturePercentB1"`
	DrcDryB1          *float64 `json:"drcDryB1"`
	LabDrcB1          *float64 `json:"labDrcB1"`
	RecalDrcB1        *float64 `json:"recalDrcB1"`

	BeforeBaking2     *float64 `gorm:"column:before_baking_2" json:"beforeBaking2"`
	AfterDryerB2      *float64 `json:"afterDryerB2"`
	BeforeLabDryerB2  *float64 `json:"beforeLabDryerB2"`
	AfterLabDryerB2   *float64 `json:"afterLabDryerB2"`
	DrcB2             *float64 `json:"drcB2"`
	MoisturePercentB2 *float64 `json:"moisturePercentB2"`
	DrcDryB2          *float64 `json:"drcDryB2"`
	LabDrcB2          *float64 `json:"labDrcB2"`
	RecalDrcB2        *float64 `json:"recalDrcB2"`

	BeforeBaking3     *float64 `gorm:"column:before_baking_3" json:"beforeBaking3"`
	AfterDryerB3      *float64 `json:"afterDryerB3"`
	BeforeLabDryerB3  *float64 `json:"beforeLabDryerB3"`
	AfterLabDryerB3   *float64 `json:"afterLabDryerB3"`
	DrcB3             *float64 `json:"drcB3"`
	MoisturePercentB3 *float64 `json:"moisturePercentB3"`
	DrcDryB3          *float64 `json:"drcDryB3"`
	LabDrcB3          *float64 `json:"labDrcB3"`
	RecalDrcB3        *float64 `json:"recalDrcB3"`

	Drc            *float64 `json:"drc"`
	MoistureFactor *float64 `json:"moistureFactor"`
	RecalDrc       *float64 `json:"recalDrc"`
	Difference     *float64 `json:"difference"`
	P0             *float64 `gorm:"column:p0" json:"p0"`
	P30            *float64 `gorm:"column:p30" json:"p30"`
	Pri            *float64 `json:"pri"`

	Storage    *string `gorm:"size:128" json:"storage"`
	RecordedBy *string `gorm:"size:128" json:"recordedBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *BookingLabSample) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
