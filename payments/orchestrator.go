package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yussieik/pazpaz-sub015/models"
	"github.com/yussieik/pazpaz-sub015/utils"
)

const (
	linkCreationTimeout = 10 * time.Second
	pollCallTimeout     = 10 * time.Second
)

// EmailSender is the seam to the email-delivery collaborator. Sending is
// best-effort: a failure here never rolls back a transaction record.
type EmailSender interface {
	SendPaymentLink(ctx context.Context, to string, txn *models.Transaction) error
}

// Orchestrator coordinates adapters, the idempotency store and the ledger. One
// instance serves all workspaces; it holds no mutable state of its own beyond the
// injected clients, so concurrent invocations are safe.
type Orchestrator struct {
	DB       *gorm.DB
	Ledger   *Ledger
	Registry *Registry
	Claims   ClaimStore
	Mailer   EmailSender

	ClaimTTL time.Duration
}

func NewOrchestrator(db *gorm.DB, registry *Registry, claims ClaimStore, mailer EmailSender) *Orchestrator {
	return &Orchestrator{
		DB:       db,
		Ledger:   NewLedger(db),
		Registry: registry,
		Claims:   claims,
		Mailer:   mailer,
		ClaimTTL: DefaultClaimTTL,
	}
}

func (o *Orchestrator) claimTTL() time.Duration {
	if o.ClaimTTL > 0 {
		return o.ClaimTTL
	}
	return DefaultClaimTTL
}

// bookingStatusFor maps a transaction status to the derived booking payment status.
func bookingStatusFor(txStatus string) string {
	switch txStatus {
	case models.TxStatusCompleted:
		return models.BookingPaid
	case models.TxStatusFailed:
		return models.BookingFailed
	case models.TxStatusRefunded:
		return models.BookingRefunded
	case models.TxStatusPending:
		return models.BookingPending
	default: // cancelled: nothing outstanding anymore
		return models.BookingUnpaid
	}
}

func (o *Orchestrator) setBookingStatus(ctx context.Context, workspaceID, bookingID uint, status string) {
	err := o.DB.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND workspace_id = ?", bookingID, workspaceID).
		Update("payment_status", status).Error
	if err != nil {
		log.Printf("[payments] booking %d status update to %s failed: %v", bookingID, status, err)
	}
}

func (o *Orchestrator) loadSettings(ctx context.Context, workspaceID uint) (*models.WorkspacePaymentSettings, error) {
	var cfg models.WorkspacePaymentSettings
	err := o.DB.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProviderNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreatePaymentRequest opens a hosted payment link for a booking and records the
// attempt. A provider failure is persisted as a failed transaction and re-raised.
func (o *Orchestrator) CreatePaymentRequest(ctx context.Context, workspaceID, bookingID uint, payerEmail string) (*models.Transaction, error) {
	var booking models.Booking
	err := o.DB.WithContext(ctx).Where("id = ? AND workspace_id = ?", bookingID, workspaceID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if booking.Price == nil || booking.Price.IsZero() {
		return nil, ErrNoPrice
	}

	cfg, err := o.loadSettings(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	adapter, creds, err := o.Registry.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	base, tax := SplitTotal(*booking.Price, cfg.TaxRate, cfg.TaxRegistered)
	reference := utils.NewReference()
	token, err := NewCorrelationToken(workspaceID, bookingID, reference)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		WorkspaceID: workspaceID,
		BookingID:   &bookingID,
		Reference:   reference,
		BaseAmount:  base,
		TaxAmount:   tax,
		TotalAmount: *booking.Price,
		Currency:    cfg.Currency,
		Provider:    adapter.Name(),
		Status:      models.TxStatusPending,
	}

	linkCtx, cancel := context.WithTimeout(ctx, linkCreationTimeout)
	defer cancel()
	link, linkErr := adapter.CreateLink(linkCtx, creds, LinkRequest{
		Reference:        reference,
		Amount:           *booking.Price,
		Currency:         cfg.Currency,
		Description:      fmt.Sprintf("Appointment payment %s", reference),
		PayerEmail:       payerEmail,
		CorrelationToken: token,
		CallbackURL:      webhookCallbackURL(adapter.Name()),
	})
	if linkErr != nil {
		reason := linkErr.Error()
		txn.Status = models.TxStatusFailed
		now := time.Now()
		txn.FailedAt = &now
		txn.FailureReason = &reason
		if err := o.Ledger.Create(ctx, txn); err != nil {
			log.Printf("[payments] persisting failed transaction for booking %d: %v", bookingID, err)
		} else {
			o.setBookingStatus(ctx, workspaceID, bookingID, models.BookingFailed)
		}
		return txn, linkErr
	}

	txn.ProviderTxID = &link.ExternalID
	txn.PaymentLink = &link.URL
	if link.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, link.ExpiresAt); err == nil {
			txn.LinkExpiresAt = &t
		}
	}
	if err := o.Ledger.Create(ctx, txn); err != nil {
		return nil, err
	}
	o.setBookingStatus(ctx, workspaceID, bookingID, models.BookingPending)

	if o.Mailer != nil && payerEmail != "" {
		if err := o.Mailer.SendPaymentLink(ctx, payerEmail, txn); err != nil {
			log.Printf("[payments] payment link email for %s failed: %v", reference, err)
		}
	}
	return txn, nil
}

// ProcessWebhook authenticates and applies a provider callback. The external id is
// read from the payload only as an untrusted lookup key; nothing else is trusted
// before the signature verifies against the resolved workspace's credentials.
func (o *Orchestrator) ProcessWebhook(ctx context.Context, providerName string, body []byte, headers http.Header) (*models.Transaction, error) {
	adapter, err := o.Registry.Adapter(providerName)
	if err != nil {
		return nil, err
	}

	externalID, err := adapter.ExternalID(body)
	if err != nil {
		return nil, err
	}

	workspaceID, err := o.Ledger.LookupWorkspace(ctx, providerName, externalID)
	if err != nil {
		return nil, err
	}

	cfg, err := o.loadSettings(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if cfg.Provider != providerName {
		// The workspace moved providers; events for the old one are unroutable.
		return nil, ErrNotFound
	}
	_, creds, err := o.Registry.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	payloadHash := hashPayload(body)
	if !adapter.Verify(creds, body, headers) {
		log.Printf("[webhook] SECURITY signature rejected provider=%s payload_sha256=%s", providerName, payloadHash)
		o.recordEvent(ctx, &models.WebhookEvent{
			Provider:        providerName,
			ProviderTxID:    externalID,
			EventType:       "rejected",
			WorkspaceID:     workspaceID,
			SignatureValid:  false,
			PayloadHash:     payloadHash,
			ProcessingError: "signature verification failed",
		})
		return nil, ErrSignature
	}

	ev, err := adapter.Parse(body)
	if err != nil {
		return nil, err
	}

	// The correlation token must agree with the row the lookup found: an external
	// id collision across workspaces cannot reach another tenant's transaction.
	tokenWID, _, err := ParseCorrelationToken(ev.CorrelationToken)
	if err != nil || tokenWID != workspaceID {
		log.Printf("[webhook] SECURITY correlation mismatch provider=%s payload_sha256=%s", providerName, payloadHash)
		return nil, ErrNotFound
	}

	claimed, err := o.Claims.TryClaim(ctx, ClaimKey(providerName, externalID, ev.Status), o.claimTTL())
	if err != nil {
		// Fail closed: the provider will retry once the store is back.
		return nil, err
	}

	txn, err := o.Ledger.FindByProviderTx(ctx, workspaceID, providerName, externalID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Already applied within the TTL window: return the existing row unchanged.
		return txn, nil
	}

	if err := o.applyEvent(ctx, txn, ev); err != nil {
		o.recordEvent(ctx, &models.WebhookEvent{
			Provider:        providerName,
			ProviderTxID:    externalID,
			EventType:       ev.Status,
			WorkspaceID:     workspaceID,
			SignatureValid:  true,
			PayloadHash:     payloadHash,
			ProcessingError: err.Error(),
		})
		return txn, err
	}

	o.recordEvent(ctx, &models.WebhookEvent{
		Provider:       providerName,
		ProviderTxID:   externalID,
		EventType:      ev.Status,
		WorkspaceID:    workspaceID,
		SignatureValid: true,
		PayloadHash:    payloadHash,
	})
	return txn, nil
}

// applyEvent moves the ledger and the derived booking status for a verified event.
func (o *Orchestrator) applyEvent(ctx context.Context, txn *models.Transaction, ev Event) error {
	var target string
	switch ev.Status {
	case EventCompleted:
		target = models.TxStatusCompleted
	case EventFailed:
		target = models.TxStatusFailed
	case EventRefunded:
		target = models.TxStatusRefunded
	default:
		return fmt.Errorf("unknown event status %q", ev.Status)
	}

	if err := o.Ledger.Transition(ctx, txn, target, ev.FailureReason); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			log.Printf("[payments] rejected transition for transaction %d (%s): %v", txn.ID, txn.Reference, err)
		}
		return err
	}
	if txn.BookingID != nil {
		o.setBookingStatus(ctx, txn.WorkspaceID, *txn.BookingID, bookingStatusFor(target))
	}
	return nil
}

// ListBookingTransactions returns a booking's payment history, newest first.
func (o *Orchestrator) ListBookingTransactions(ctx context.Context, workspaceID, bookingID uint) ([]models.Transaction, error) {
	var booking models.Booking
	err := o.DB.WithContext(ctx).Select("id").
		Where("id = ? AND workspace_id = ?", bookingID, workspaceID).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o.Ledger.ListForBooking(ctx, workspaceID, bookingID)
}

// PollPending is the webhook fallback: for transactions stuck pending longer than
// olderThan it asks the provider for the current status and applies the answer
// through the same claim+transition path a webhook would take. Returns how many
// transactions changed state.
func (o *Orchestrator) PollPending(ctx context.Context, olderThan time.Duration) (int, error) {
	var stuck []models.Transaction
	cutoff := time.Now().Add(-olderThan)
	err := o.DB.WithContext(ctx).
		Where("status = ? AND provider_tx_id IS NOT NULL AND created_at <= ?", models.TxStatusPending, cutoff).
		Order("created_at ASC").Limit(200).
		Find(&stuck).Error
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range stuck {
		txn := &stuck[i]
		cfg, err := o.loadSettings(ctx, txn.WorkspaceID)
		if err != nil {
			log.Printf("[cron] poll: settings for workspace %d: %v", txn.WorkspaceID, err)
			continue
		}
		adapter, creds, err := o.Registry.Resolve(cfg)
		if err != nil || adapter.Name() != txn.Provider {
			log.Printf("[cron] poll: resolve provider for transaction %d: %v", txn.ID, err)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, pollCallTimeout)
		ev, err := adapter.PollStatus(callCtx, creds, *txn.ProviderTxID)
		cancel()
		if err != nil {
			log.Printf("[cron] poll: provider %s status for %s: %v", txn.Provider, txn.Reference, err)
			continue
		}

		claimed, err := o.Claims.TryClaim(ctx, ClaimKey(txn.Provider, *txn.ProviderTxID, ev.Status), o.claimTTL())
		if err != nil {
			log.Printf("[cron] poll: claim for %s: %v", txn.Reference, err)
			continue
		}
		if !claimed {
			continue // a webhook got here first
		}
		if err := o.applyEvent(ctx, txn, ev); err != nil {
			log.Printf("[cron] poll: apply event for %s: %v", txn.Reference, err)
			continue
		}
		applied++
	}
	return applied, nil
}

// ExpirePending cancels pending transactions whose payment link expired. Returns
// how many rows were cancelled.
func (o *Orchestrator) ExpirePending(ctx context.Context) (int, error) {
	var expired []models.Transaction
	now := time.Now()
	err := o.DB.WithContext(ctx).
		Where("status = ? AND link_expires_at IS NOT NULL AND link_expires_at <= ?", models.TxStatusPending, now).
		Limit(500).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for i := range expired {
		txn := &expired[i]
		if err := o.Ledger.Transition(ctx, txn, models.TxStatusCancelled, "payment link expired"); err != nil {
			log.Printf("[cron] expire: transaction %d: %v", txn.ID, err)
			continue
		}
		if txn.BookingID != nil {
			o.setBookingStatus(ctx, txn.WorkspaceID, *txn.BookingID, models.BookingUnpaid)
		}
		cancelled++
	}
	return cancelled, nil
}

func (o *Orchestrator) recordEvent(ctx context.Context, ev *models.WebhookEvent) {
	err := o.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev).Error
	if err != nil {
		log.Printf("[webhook] recording event for %s/%s: %v", ev.Provider, ev.ProviderTxID, err)
	}
}

func hashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}

func webhookCallbackURL(provider string) string {
	base := os.Getenv("WEBHOOK_BASE_URL")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/v1/callback/%s", base, provider)
}
