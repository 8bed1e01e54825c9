package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yussieik/pazpaz-sub015/models"
)

// Ledger owns the transaction rows and the state machine over them. Every status
// change goes through a conditional UPDATE keyed on the current status, so two
// concurrent writers cannot both move the same row; the loser sees zero affected
// rows and gets ErrInvalidTransition. Rows are never deleted.
type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// transitionFrom maps a target status to the only status it may be entered from.
func transitionFrom(target string) (string, error) {
	switch target {
	case models.TxStatusCompleted, models.TxStatusFailed, models.TxStatusCancelled:
		return models.TxStatusPending, nil
	case models.TxStatusRefunded:
		return models.TxStatusCompleted, nil
	default:
		return "", fmt.Errorf("no transition into status %q", target)
	}
}

func (l *Ledger) Create(ctx context.Context, txn *models.Transaction) error {
	return l.DB.WithContext(ctx).Create(txn).Error
}

// FindByProviderTx loads a transaction by its provider-assigned id, scoped to a
// workspace. A cross-workspace id is indistinguishable from a missing row.
func (l *Ledger) FindByProviderTx(ctx context.Context, workspaceID uint, provider, externalID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := l.DB.WithContext(ctx).
		Where("workspace_id = ? AND provider = ? AND provider_tx_id = ?", workspaceID, provider, externalID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// LookupWorkspace resolves (provider, external id) to the owning workspace without
// trusting anything else from the payload. This is the index written at
// link-creation time.
func (l *Ledger) LookupWorkspace(ctx context.Context, provider, externalID string) (uint, error) {
	var txn models.Transaction
	err := l.DB.WithContext(ctx).Select("workspace_id").
		Where("provider = ? AND provider_tx_id = ?", provider, externalID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return txn.WorkspaceID, nil
}

// ListForBooking returns a booking's transactions newest-first. Payment links are
// blanked on everything except pending attempts.
func (l *Ledger) ListForBooking(ctx context.Context, workspaceID, bookingID uint) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := l.DB.WithContext(ctx).
		Where("workspace_id = ? AND booking_id = ?", workspaceID, bookingID).
		Order("created_at DESC, id DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	for i := range txns {
		if txns[i].Status != models.TxStatusPending {
			txns[i].PaymentLink = nil
		}
	}
	return txns, nil
}

// Transition moves a transaction into target, guarding on the required current
// status. failureReason is recorded on failed transitions only and must never
// contain provider secrets.
func (l *Ledger) Transition(ctx context.Context, txn *models.Transaction, target, failureReason string) error {
	from, err := transitionFrom(target)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{"status": target}
	switch target {
	case models.TxStatusCompleted:
		updates["completed_at"] = now
	case models.TxStatusFailed:
		updates["failed_at"] = now
		if failureReason != "" {
			updates["failure_reason"] = failureReason
		}
	case models.TxStatusCancelled:
		if failureReason != "" {
			updates["failure_reason"] = failureReason
		}
	}

	res := l.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Reload so the error carries the actual state, not our stale copy.
		var current models.Transaction
		if err := l.DB.WithContext(ctx).Select("status").First(&current, txn.ID).Error; err == nil {
			txn.Status = current.Status
		}
		return fmt.Errorf("%w: %s -> %s rejected, transaction %d is %s", ErrInvalidTransition, from, target, txn.ID, txn.Status)
	}

	txn.Status = target
	switch target {
	case models.TxStatusCompleted:
		txn.CompletedAt = &now
	case models.TxStatusFailed:
		txn.FailedAt = &now
		if failureReason != "" {
			txn.FailureReason = &failureReason
		}
	case models.TxStatusCancelled:
		if failureReason != "" {
			txn.FailureReason = &failureReason
		}
	}
	return nil
}
