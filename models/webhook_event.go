package models

import "time"

// WebhookEvent records every provider callback that reached signature verification,
// with deduplication metadata. Raw payloads are never stored here, only a truncated
// SHA-256 hash; full bodies go to the object-storage archive when configured.
type WebhookEvent struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Provider     string `gorm:"type:varchar(32);not null;index:ux_webhook_events_dedup,unique,priority:1" json:"provider"`
	ProviderTxID string `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_dedup,unique,priority:2" json:"provider_tx_id"`
	EventType    string `gorm:"type:varchar(32);not null;default:'';index:ux_webhook_events_dedup,unique,priority:3" json:"event_type"`

	WorkspaceID     uint   `gorm:"index" json:"workspace_id"`
	SignatureValid  bool   `gorm:"not null;default:false;index" json:"signature_valid"`
	PayloadHash     string `gorm:"type:varchar(32);not null" json:"payload_hash"`
	ProcessingError string `gorm:"type:text" json:"processing_error"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
