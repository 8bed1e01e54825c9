package payments

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// Event statuses in the canonical vocabulary every adapter normalizes into.
const (
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventRefunded  = "refunded"
)

// Credentials holds the decrypted per-workspace provider secrets. Fields are a
// superset across providers; each adapter reads the ones it needs. Never log these.
type Credentials struct {
	APIKey        string `json:"api_key,omitempty"`
	Secret        string `json:"secret,omitempty"`
	MerchantID    string `json:"merchant_id,omitempty"`
	TerminalID    string `json:"terminal_id,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// LinkRequest carries everything an adapter needs to open a hosted payment page.
// Description must stay free of clinical content; the correlation token embeds the
// workspace and booking so the webhook can be resolved without session state.
type LinkRequest struct {
	Reference        string
	Amount           decimal.Decimal
	Currency         string
	Description      string
	PayerEmail       string
	CorrelationToken string
	CallbackURL      string
}

// Link is the provider's answer to a successful link creation.
type Link struct {
	URL        string
	ExternalID string
	ExpiresAt  string // RFC 3339 when the provider reports one, otherwise empty
}

// Event is a provider callback or poll result normalized to the canonical status
// set with amounts converted to decimal.
type Event struct {
	ExternalID       string
	Status           string
	Amount           decimal.Decimal
	Currency         string
	CorrelationToken string
	FailureReason    string
}

// Provider is the fixed capability set every payment provider adapter implements.
//
// Verify recomputes the provider's HMAC over the raw, unparsed body and compares
// in constant time; it returns false, never an error, on anything malformed.
// ExternalID is a shallow decode used only as an untrusted lookup key before
// verification. CreateLink and PollStatus are single-shot: the caller owns retries.
type Provider interface {
	Name() string
	CreateLink(ctx context.Context, creds Credentials, req LinkRequest) (Link, error)
	Verify(creds Credentials, body []byte, headers http.Header) bool
	Parse(body []byte) (Event, error)
	ExternalID(body []byte) (string, error)
	PollStatus(ctx context.Context, creds Credentials, externalID string) (Event, error)
}
