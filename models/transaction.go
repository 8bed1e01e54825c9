package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses. Rows are append-only: corrections (refunds) transition an
// existing row, they never delete or rewrite amounts.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusRefunded  = "refunded"
	TxStatusCancelled = "cancelled"
)

// Transaction is one payment attempt against a booking.
// BaseAmount + TaxAmount always equals TotalAmount exactly.
type Transaction struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	WorkspaceID uint   `gorm:"not null;index" json:"workspace_id"`
	BookingID   *uint  `gorm:"index" json:"booking_id,omitempty"`
	Reference   string `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`

	BaseAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"base_amount"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`

	Status string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Provider linkage. ProviderTxID is unique within a provider's namespace and
	// immutable once set; it stays NULL when link creation itself failed.
	Provider     string  `gorm:"type:varchar(32);not null;index:ux_transactions_provider_tx,unique,priority:1" json:"provider"`
	ProviderTxID *string `gorm:"type:varchar(191);index:ux_transactions_provider_tx,unique,priority:2" json:"provider_tx_id,omitempty"`
	PaymentLink  *string `gorm:"type:text" json:"payment_link,omitempty"`

	FailureReason *string `gorm:"type:text" json:"failure_reason,omitempty"`

	LinkExpiresAt *time.Time `json:"link_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	UpdatedAt     time.Time  `json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// IsTerminal reports whether the transaction can accept no further provider events
// other than a refund against a completed payment.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TxStatusPending
}
