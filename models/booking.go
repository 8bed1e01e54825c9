package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking payment statuses. The payment engine owns writes to Booking.PaymentStatus;
// all other booking fields belong to the scheduling side of the application.
const (
	BookingUnpaid   = "unpaid"
	BookingPending  = "pending"
	BookingPaid     = "paid"
	BookingFailed   = "failed"
	BookingRefunded = "refunded"
)

type Booking struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	WorkspaceID uint             `gorm:"not null;index" json:"workspace_id"`
	ClientName  string           `gorm:"type:varchar(191)" json:"client_name"`
	StartsAt    *time.Time       `json:"starts_at,omitempty"`
	Price       *decimal.Decimal `gorm:"type:decimal(15,2)" json:"price,omitempty"`

	PaymentStatus string `gorm:"type:varchar(16);not null;default:'unpaid';index" json:"payment_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (Booking) TableName() string { return "bookings" }
