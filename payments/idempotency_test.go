package payments

import (
	"context"
	"testing"
	"time"
)

func TestMemoryClaimStore_FirstWriterWins(t *testing.T) {
	s := NewMemoryClaimStore()
	key := ClaimKey("meshulam", "mp-1", EventCompleted)

	ok, err := s.TryClaim(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !ok {
		t.Fatalf("first claim should succeed")
	}

	ok, err = s.TryClaim(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("duplicate claim should fail within TTL")
	}
}

func TestMemoryClaimStore_KeysAreIndependent(t *testing.T) {
	s := NewMemoryClaimStore()

	ok, _ := s.TryClaim(context.Background(), ClaimKey("meshulam", "mp-1", EventCompleted), time.Minute)
	if !ok {
		t.Fatalf("first key should claim")
	}
	// Same transaction, different event type: separate claim.
	ok, _ = s.TryClaim(context.Background(), ClaimKey("meshulam", "mp-1", EventRefunded), time.Minute)
	if !ok {
		t.Fatalf("different event type should claim independently")
	}
	ok, _ = s.TryClaim(context.Background(), ClaimKey("tranzila", "mp-1", EventCompleted), time.Minute)
	if !ok {
		t.Fatalf("different provider should claim independently")
	}
}

func TestMemoryClaimStore_Expiry(t *testing.T) {
	s := NewMemoryClaimStore()
	key := ClaimKey("meshulam", "mp-2", EventCompleted)

	if ok, _ := s.TryClaim(context.Background(), key, 10*time.Millisecond); !ok {
		t.Fatalf("first claim should succeed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := s.TryClaim(context.Background(), key, time.Minute); !ok {
		t.Fatalf("claim should succeed again after expiry")
	}
}

func TestClaimKey(t *testing.T) {
	key := ClaimKey("tranzila", "tl-1", "completed")
	if key != "payments:claim:tranzila:tl-1:completed" {
		t.Fatalf("unexpected claim key %s", key)
	}
}
