package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPGeneric_DirectRemote(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	ip := clientIPGeneric(req, nil)
	if ip != "203.0.113.5" {
		t.Fatalf("expected direct remote IP, got %s", ip)
	}
}

func TestClientIPGeneric_TrustedProxyXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.10")
	// trustedCIDR contains the remote IP
	ip := clientIPGeneric(req, []string{"198.51.100.10"})
	if ip != "203.0.113.7" {
		t.Fatalf("expected X-Forwarded-For first value, got %s", ip)
	}
}

func TestClientIPGeneric_UntrustedProxyIgnoresXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.11:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.8, 198.51.100.11")
	ip := clientIPGeneric(req, []string{"198.51.100.10"})
	if ip != "198.51.100.11" {
		t.Fatalf("expected remote IP when proxy untrusted, got %s", ip)
	}
}

func TestClientIPGeneric_TrustedProxyCIDR(t *testing.T) {
	// TRUSTED_PROXIES entries may be whole subnets, the usual shape for a
	// load-balancer fleet in front of the webhook endpoints.
	req := httptest.NewRequest("POST", "http://example.local/v1/callback/meshulam", nil)
	req.RemoteAddr = "10.0.3.17:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	ip := clientIPGeneric(req, []string{"10.0.0.0/16"})
	if ip != "203.0.113.9" {
		t.Fatalf("expected X-Forwarded-For via CIDR-trusted proxy, got %s", ip)
	}

	req.RemoteAddr = "10.1.0.5:443"
	ip = clientIPGeneric(req, []string{"10.0.0.0/16"})
	if ip != "10.1.0.5" {
		t.Fatalf("expected remote IP outside trusted CIDR, got %s", ip)
	}
}

func TestClientIPGeneric_TrustedProxyXRealIP(t *testing.T) {
	req := httptest.NewRequest("POST", "http://example.local/v1/callback/tranzila", nil)
	req.RemoteAddr = "10.0.3.17:443"
	req.Header.Set("X-Real-IP", "203.0.113.10")
	ip := clientIPGeneric(req, []string{"10.0.0.0/16"})
	if ip != "203.0.113.10" {
		t.Fatalf("expected X-Real-IP via trusted proxy, got %s", ip)
	}
}
