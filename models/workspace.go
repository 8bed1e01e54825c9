package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Workspace is the tenant. Administration of workspaces lives outside the payment
// engine; only the payment settings relation is consumed here.
type Workspace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (Workspace) TableName() string { return "workspaces" }

// WorkspacePaymentSettings holds the per-tenant payment configuration. The provider
// name is cleartext; the credentials blob is sealed with the application encryption
// key and only decrypted at adapter-resolution time. Read-only to the payment engine.
type WorkspacePaymentSettings struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	WorkspaceID uint `gorm:"not null;uniqueIndex" json:"workspace_id"`

	Provider       string `gorm:"type:varchar(32)" json:"provider"`
	CredentialsEnc string `gorm:"type:text" json:"-"`

	TaxRegistered bool            `gorm:"not null;default:false" json:"tax_registered"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'ILS'" json:"currency"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (WorkspacePaymentSettings) TableName() string { return "workspace_payment_settings" }
