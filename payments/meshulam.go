package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const meshulamSignatureHeader = "X-Meshulam-Signature"

// Meshulam integrates the Meshulam (Grow) hosted payment pages API. Amounts on the
// wire are agorot (minor units); webhooks are signed HMAC-SHA256 hex over the raw
// body with the workspace's webhook secret.
type Meshulam struct {
	BaseURL string
	Client  *http.Client
}

func NewMeshulam() *Meshulam {
	return &Meshulam{
		BaseURL: "https://secure.meshulam.co.il/api/light/server/1.0",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Meshulam) Name() string { return "meshulam" }

type meshulamEnvelope struct {
	Status int             `json:"status"`
	Err    meshulamError   `json:"err"`
	Data   json.RawMessage `json:"data"`
}

type meshulamError struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

type meshulamLinkData struct {
	ProcessID string `json:"processId"`
	URL       string `json:"url"`
	Expiry    string `json:"expiry"`
}

func (m *Meshulam) CreateLink(ctx context.Context, creds Credentials, req LinkRequest) (Link, error) {
	bodyObj := map[string]interface{}{
		"apiKey":      creds.APIKey,
		"pageCode":    creds.MerchantID,
		"sum":         req.Amount.Mul(hundred).IntPart(), // agorot
		"currency":    req.Currency,
		"description": req.Description,
		"payerEmail":  req.PayerEmail,
		"reference":   req.Reference,
		"notifyUrl":   req.CallbackURL,
		"customField": req.CorrelationToken,
	}
	body, _ := json.Marshal(bodyObj)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(m.BaseURL, "/")+"/createPaymentProcess", bytes.NewReader(body))
	if err != nil {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Status: resp.StatusCode, Err: fmt.Errorf("unexpected response")}
	}

	var env meshulamEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Err: fmt.Errorf("parse response: %w", err)}
	}
	if env.Status != 1 {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Err: fmt.Errorf("api error %d: %s", env.Err.ID, env.Err.Message)}
	}
	var data meshulamLinkData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Err: fmt.Errorf("parse data: %w", err)}
	}
	if data.URL == "" || data.ProcessID == "" {
		return Link{}, &ProviderError{Provider: m.Name(), Op: "createLink", Err: fmt.Errorf("empty payment link in response")}
	}
	return Link{URL: data.URL, ExternalID: data.ProcessID, ExpiresAt: data.Expiry}, nil
}

func (m *Meshulam) Verify(creds Credentials, body []byte, headers http.Header) bool {
	sigHex := strings.TrimSpace(headers.Get(meshulamSignatureHeader))
	if sigHex == "" || creds.WebhookSecret == "" {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(creds.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

type meshulamCallback struct {
	Data struct {
		ProcessID    string `json:"processId"`
		Status       string `json:"status"`
		Sum          int64  `json:"sum"` // agorot
		Currency     string `json:"currency"`
		CustomField  string `json:"customField"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"data"`
}

func (m *Meshulam) Parse(body []byte) (Event, error) {
	var cb meshulamCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "parse", Err: err}
	}
	if cb.Data.ProcessID == "" {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "parse", Err: fmt.Errorf("missing processId")}
	}
	ev := Event{
		ExternalID:       cb.Data.ProcessID,
		Amount:           decimal.NewFromInt(cb.Data.Sum).Div(hundred),
		Currency:         cb.Data.Currency,
		CorrelationToken: cb.Data.CustomField,
		FailureReason:    cb.Data.ErrorMessage,
	}
	switch strings.ToLower(strings.TrimSpace(cb.Data.Status)) {
	case "approved", "shva_approved":
		ev.Status = EventCompleted
	case "refund", "refunded":
		ev.Status = EventRefunded
	case "declined", "error", "failed":
		ev.Status = EventFailed
	default:
		return Event{}, &ProviderError{Provider: m.Name(), Op: "parse", Err: fmt.Errorf("unknown status %q", cb.Data.Status)}
	}
	return ev, nil
}

func (m *Meshulam) ExternalID(body []byte) (string, error) {
	var cb meshulamCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return "", &ProviderError{Provider: m.Name(), Op: "externalId", Err: err}
	}
	if cb.Data.ProcessID == "" {
		return "", &ProviderError{Provider: m.Name(), Op: "externalId", Err: fmt.Errorf("missing processId")}
	}
	return cb.Data.ProcessID, nil
}

func (m *Meshulam) PollStatus(ctx context.Context, creds Credentials, externalID string) (Event, error) {
	bodyObj := map[string]string{
		"apiKey":    creds.APIKey,
		"processId": externalID,
	}
	body, _ := json.Marshal(bodyObj)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(m.BaseURL, "/")+"/getPaymentProcessInfo", bytes.NewReader(body))
	if err != nil {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "pollStatus", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "pollStatus", Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "pollStatus", Status: resp.StatusCode, Err: fmt.Errorf("unexpected response")}
	}

	var env meshulamEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "pollStatus", Err: fmt.Errorf("parse response: %w", err)}
	}
	if env.Status != 1 {
		return Event{}, &ProviderError{Provider: m.Name(), Op: "pollStatus", Err: fmt.Errorf("api error %d: %s", env.Err.ID, env.Err.Message)}
	}
	// Poll responses reuse the callback data shape.
	return m.Parse([]byte(fmt.Sprintf(`{"data":%s}`, string(env.Data))))
}
