package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func meshulamSign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestMeshulamVerify(t *testing.T) {
	m := NewMeshulam()
	creds := Credentials{WebhookSecret: "whsec-test"}
	body := []byte(`{"data":{"processId":"mp-1","status":"approved","sum":15000}}`)

	headers := http.Header{}
	headers.Set("X-Meshulam-Signature", meshulamSign("whsec-test", body))
	if !m.Verify(creds, body, headers) {
		t.Fatalf("valid signature rejected")
	}

	// Any byte change must invalidate the signature.
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = '9'
	if m.Verify(creds, tampered, headers) {
		t.Fatalf("tampered body accepted")
	}

	headers.Set("X-Meshulam-Signature", meshulamSign("wrong-secret", body))
	if m.Verify(creds, body, headers) {
		t.Fatalf("signature from wrong secret accepted")
	}

	if m.Verify(creds, body, http.Header{}) {
		t.Fatalf("missing signature header accepted")
	}
	if m.Verify(Credentials{}, body, headers) {
		t.Fatalf("empty webhook secret accepted")
	}
}

func TestMeshulamParse(t *testing.T) {
	m := NewMeshulam()
	body := []byte(`{"data":{"processId":"mp-7","status":"approved","sum":15000,"currency":"ILS","customField":"tok-abc"}}`)

	ev, err := m.Parse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.ExternalID != "mp-7" {
		t.Fatalf("expected external id mp-7, got %s", ev.ExternalID)
	}
	if ev.Status != EventCompleted {
		t.Fatalf("expected completed, got %s", ev.Status)
	}
	// 15000 agorot = 150.00 ILS
	if ev.Amount.StringFixed(2) != "150.00" {
		t.Fatalf("expected 150.00, got %s", ev.Amount.StringFixed(2))
	}
	if ev.CorrelationToken != "tok-abc" {
		t.Fatalf("expected correlation token tok-abc, got %s", ev.CorrelationToken)
	}
}

func TestMeshulamParseStatuses(t *testing.T) {
	m := NewMeshulam()
	cases := []struct {
		status string
		want   string
	}{
		{"approved", EventCompleted},
		{"shva_approved", EventCompleted},
		{"refund", EventRefunded},
		{"declined", EventFailed},
		{"error", EventFailed},
	}
	for _, c := range cases {
		body := []byte(`{"data":{"processId":"mp-1","status":"` + c.status + `"}}`)
		ev, err := m.Parse(body)
		if err != nil {
			t.Fatalf("status %q: %v", c.status, err)
		}
		if ev.Status != c.want {
			t.Fatalf("status %q: expected %s, got %s", c.status, c.want, ev.Status)
		}
	}

	if _, err := m.Parse([]byte(`{"data":{"processId":"mp-1","status":"weird"}}`)); err == nil {
		t.Fatalf("unknown status should fail")
	}
}

func TestMeshulamExternalID(t *testing.T) {
	m := NewMeshulam()
	id, err := m.ExternalID([]byte(`{"data":{"processId":"mp-42","status":"approved"}}`))
	if err != nil {
		t.Fatalf("external id: %v", err)
	}
	if id != "mp-42" {
		t.Fatalf("expected mp-42, got %s", id)
	}

	if _, err := m.ExternalID([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("missing processId should fail")
	}
	if _, err := m.ExternalID([]byte(`not json`)); err == nil {
		t.Fatalf("malformed body should fail")
	}
}

func newMeshulamAgainst(srv *httptest.Server) *Meshulam {
	m := NewMeshulam()
	m.BaseURL = srv.URL
	m.Client = srv.Client()
	return m
}

func TestMeshulamCreateLink(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":1,"data":{"processId":"mp-100","url":"https://pay.meshulam.test/mp-100"}}`))
	}))
	defer srv.Close()

	m := newMeshulamAgainst(srv)
	link, err := m.CreateLink(context.Background(), Credentials{APIKey: "key", MerchantID: "page-1"}, LinkRequest{
		Reference: "PZ-REF1",
		Amount:    decimal.RequireFromString("150.00"),
		Currency:  "ILS",
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if link.ExternalID != "mp-100" || link.URL != "https://pay.meshulam.test/mp-100" {
		t.Fatalf("unexpected link %+v", link)
	}
	if gotPath != "/createPaymentProcess" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	// 150.00 ILS goes over the wire as 15000 agorot.
	if sum, ok := gotBody["sum"].(float64); !ok || int64(sum) != 15000 {
		t.Fatalf("expected sum 15000, got %v", gotBody["sum"])
	}
}

func TestMeshulamCreateLinkFailures(t *testing.T) {
	cases := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "envelope error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":0,"err":{"id":3,"message":"invalid page code"}}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json at all`))
			},
		},
		{
			name: "missing link",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":1,"data":{}}`))
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(c.handler)
			defer srv.Close()

			m := newMeshulamAgainst(srv)
			_, err := m.CreateLink(context.Background(), Credentials{}, LinkRequest{Amount: decimal.RequireFromString("10.00")})
			var provErr *ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if provErr.Provider != "meshulam" || provErr.Op != "createLink" {
				t.Fatalf("unexpected error identity %+v", provErr)
			}
			if c.wantCode != 0 && provErr.Status != c.wantCode {
				t.Fatalf("expected status %d, got %d", c.wantCode, provErr.Status)
			}
		})
	}
}

func TestMeshulamPollStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getPaymentProcessInfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":1,"data":{"processId":"mp-100","status":"approved","sum":15000,"currency":"ILS"}}`))
	}))
	defer srv.Close()

	m := newMeshulamAgainst(srv)
	ev, err := m.PollStatus(context.Background(), Credentials{APIKey: "key"}, "mp-100")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if ev.Status != EventCompleted || ev.ExternalID != "mp-100" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Amount.StringFixed(2) != "150.00" {
		t.Fatalf("expected 150.00, got %s", ev.Amount.StringFixed(2))
	}
}

func TestMeshulamPollStatusEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":0,"err":{"id":7,"message":"unknown process"}}`))
	}))
	defer srv.Close()

	m := newMeshulamAgainst(srv)
	_, err := m.PollStatus(context.Background(), Credentials{}, "mp-ghost")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Op != "pollStatus" {
		t.Fatalf("expected pollStatus op, got %s", provErr.Op)
	}
}
