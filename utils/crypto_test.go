package utils

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func testKey(b byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{b}, 32))
}

func TestSealOpenRoundtrip(t *testing.T) {
	t.Setenv("APP_ENC_KEY", testKey(0x11))

	plain := []byte(`{"api_key":"secret-value"}`)
	blob, err := Seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if blob == string(plain) {
		t.Fatalf("ciphertext must differ from plaintext")
	}

	got, err := Open(blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("roundtrip mismatch: %s", got)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	t.Setenv("APP_ENC_KEY", testKey(0x11))
	blob, err := Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	t.Setenv("APP_ENC_KEY", testKey(0x22))
	if _, err := Open(blob); err == nil {
		t.Fatalf("open with wrong key should fail")
	}
}

func TestSealRejectsBadKey(t *testing.T) {
	t.Setenv("APP_ENC_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	if _, err := Seal([]byte("x")); err == nil {
		t.Fatalf("short key should be rejected")
	}

	t.Setenv("APP_ENC_KEY", "")
	if _, err := Seal([]byte("x")); err == nil {
		t.Fatalf("missing key should be rejected")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	t.Setenv("APP_ENC_KEY", testKey(0x11))
	if _, err := Open("%%%not-base64%%%"); err == nil {
		t.Fatalf("invalid encoding should fail")
	}
	if _, err := Open(base64.StdEncoding.EncodeToString([]byte("tiny"))); err == nil {
		t.Fatalf("too-short ciphertext should fail")
	}
}
