package sealer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
}

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New(Config{Key: testKey()})
	if err != nil || s == nil {
		t.Fatalf("New: s=%v err=%v", s, err)
	}
	sealed, err := s.SealString("priv-0123456789abcdefghij")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("priv-")) {
		t.Fatalf("sealed output leaks plaintext")
	}
	got, err := s.OpenString(sealed)
	if err != nil || got != "priv-0123456789abcdefghij" {
		t.Fatalf("Open: want=priv-0123456789abcdefghij got=%q err=%v", got, err)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := New(Config{Key: testKey()})
	sealed, _ := s.SealString("secret")
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Fatalf("tampered: want ErrOpen got=%v", err)
	}
	if _, err := s.Open([]byte("short")); !errors.Is(err, ErrOpen) {
		t.Fatalf("short: want ErrOpen got=%v", err)
	}
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	s, err := New(Config{})
	if err != nil || s != nil {
		t.Fatalf("New(empty): want nil,nil got=%v,%v", s, err)
	}
	if _, err := New(Config{Key: base64.StdEncoding.EncodeToString([]byte("short"))}); err == nil {
		t.Fatalf("New(short key): want error")
	}
}
