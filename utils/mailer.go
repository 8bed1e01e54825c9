package utils

import (
	"context"
	"log"

	"github.com/yussieik/pazpaz-sub015/models"
)

// Email delivery belongs to the surrounding application; the payment engine only
// triggers it. LogMailer is the default wiring when no delivery backend is
// attached: it records the trigger so operators can see the hand-off happened.
type LogMailer struct{}

func (LogMailer) SendPaymentLink(_ context.Context, to string, txn *models.Transaction) error {
	log.Printf("[mail] payment link trigger to=%s reference=%s", to, txn.Reference)
	return nil
}
