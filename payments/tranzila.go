package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const tranzilaSignatureHeader = "X-Tranzila-Signature"

// Tranzila integrates the Tranzila hosted payment link API. Amounts on the wire are
// decimal strings ("150.00"); webhooks are signed HMAC-SHA512 base64 over the raw
// body with the terminal's webhook secret.
type Tranzila struct {
	BaseURL string
	Client  *http.Client
}

func NewTranzila() *Tranzila {
	return &Tranzila{
		BaseURL: "https://api.tranzila.com/v2",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Tranzila) Name() string { return "tranzila" }

type tranzilaLinkResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	LinkID     string `json:"link_id"`
	LinkURL    string `json:"link_url"`
	ExpiresAt  string `json:"expires_at"`
}

func (t *Tranzila) CreateLink(ctx context.Context, creds Credentials, req LinkRequest) (Link, error) {
	bodyObj := map[string]interface{}{
		"terminal_name": creds.TerminalID,
		"sum":           req.Amount.StringFixed(2),
		"currency_code": req.Currency,
		"description":   req.Description,
		"email":         req.PayerEmail,
		"order_id":      req.Reference,
		"notify_url":    req.CallbackURL,
		"udf1":          req.CorrelationToken,
	}
	body, _ := json.Marshal(bodyObj)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.BaseURL, "/")+"/payment_links", bytes.NewReader(body))
	if err != nil {
		return Link{}, &ProviderError{Provider: t.Name(), Op: "createLink", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tranzila-Api-Key", creds.APIKey)

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return Link{}, &ProviderError{Provider: t.Name(), Op: "createLink", Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Link{}, &ProviderError{Provider: t.Name(), Op: "createLink", Status: resp.StatusCode, Err: fmt.Errorf("unexpected response")}
	}

	var result tranzilaLinkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Link{}, &ProviderError{Provider: t.Name(), Op: "createLink", Err: fmt.Errorf("parse response: %w", err)}
	}
	if result.StatusCode != 0 {
		return Link{}, &ProviderError{Provider: t.Name(), Op: "createLink", Err: fmt.Errorf("api error %d: %s", result.StatusCode, result.Message)}
	}
	if result.LinkURL == "" || result.LinkID == "" {
		return Link{}, &ProviderError{Provider: t.Name(), Op: "createLink", Err: fmt.Errorf("empty payment link in response")}
	}
	return Link{URL: result.LinkURL, ExternalID: result.LinkID, ExpiresAt: result.ExpiresAt}, nil
}

func (t *Tranzila) Verify(creds Credentials, body []byte, headers http.Header) bool {
	sigB64 := strings.TrimSpace(headers.Get(tranzilaSignatureHeader))
	if sigB64 == "" || creds.WebhookSecret == "" {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(creds.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

type tranzilaCallback struct {
	LinkID       string `json:"link_id"`
	Response     string `json:"processor_response_code"` // "000" = approved
	TxType       string `json:"transaction_type"`        // debit | credit
	Sum          string `json:"sum"`
	CurrencyCode string `json:"currency_code"`
	UDF1         string `json:"udf1"`
	ErrorDetail  string `json:"error_detail"`
}

func (t *Tranzila) Parse(body []byte) (Event, error) {
	var cb tranzilaCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Event{}, &ProviderError{Provider: t.Name(), Op: "parse", Err: err}
	}
	if cb.LinkID == "" {
		return Event{}, &ProviderError{Provider: t.Name(), Op: "parse", Err: fmt.Errorf("missing link_id")}
	}
	amount := decimal.Zero
	if cb.Sum != "" {
		var err error
		amount, err = decimal.NewFromString(cb.Sum)
		if err != nil {
			return Event{}, &ProviderError{Provider: t.Name(), Op: "parse", Err: fmt.Errorf("bad sum %q: %w", cb.Sum, err)}
		}
	}
	ev := Event{
		ExternalID:       cb.LinkID,
		Amount:           amount,
		Currency:         cb.CurrencyCode,
		CorrelationToken: cb.UDF1,
		FailureReason:    cb.ErrorDetail,
	}
	switch {
	case strings.EqualFold(cb.TxType, "credit"):
		ev.Status = EventRefunded
	case cb.Response == "000":
		ev.Status = EventCompleted
	case cb.Response != "":
		ev.Status = EventFailed
		if ev.FailureReason == "" {
			ev.FailureReason = fmt.Sprintf("processor response %s", cb.Response)
		}
	default:
		return Event{}, &ProviderError{Provider: t.Name(), Op: "parse", Err: fmt.Errorf("missing processor response code")}
	}
	return ev, nil
}

func (t *Tranzila) ExternalID(body []byte) (string, error) {
	var cb tranzilaCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return "", &ProviderError{Provider: t.Name(), Op: "externalId", Err: err}
	}
	if cb.LinkID == "" {
		return "", &ProviderError{Provider: t.Name(), Op: "externalId", Err: fmt.Errorf("missing link_id")}
	}
	return cb.LinkID, nil
}

func (t *Tranzila) PollStatus(ctx context.Context, creds Credentials, externalID string) (Event, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(t.BaseURL, "/")+"/payment_links/"+externalID, nil)
	if err != nil {
		return Event{}, &ProviderError{Provider: t.Name(), Op: "pollStatus", Err: err}
	}
	httpReq.Header.Set("X-Tranzila-Api-Key", creds.APIKey)

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return Event{}, &ProviderError{Provider: t.Name(), Op: "pollStatus", Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Event{}, &ProviderError{Provider: t.Name(), Op: "pollStatus", Status: resp.StatusCode, Err: fmt.Errorf("unexpected response")}
	}
	// Status responses reuse the callback shape.
	return t.Parse(respBody)
}
