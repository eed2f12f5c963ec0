package sealer

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

type Config struct {
	// Key is 32 bytes, base64 encoded.
	Key string `env:"DARX_SEAL_KEY"`
}

var ErrOpen = errors.New("sealer: ciphertext could not be opened")

// Sealer encrypts small secrets for storage. Output is nonce || box.
type Sealer struct {
	key [32]byte
}

// New returns nil, nil when no key is configured.
func New(cfg Config) (*Sealer, error) {
	raw := strings.TrimSpace(cfg.Key)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("DARX_SEAL_KEY: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("DARX_SEAL_KEY: want 32 bytes got %d", len(b))
	}
	s := &Sealer{}
	copy(s.key[:], b)
	return s, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24+secretbox.Overhead {
		return nil, ErrOpen
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	out, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, ErrOpen
	}
	return out, nil
}

func (s *Sealer) SealString(v string) ([]byte, error) { return s.Seal([]byte(v)) }

func (s *Sealer) OpenString(sealed []byte) (string, error) {
	b, err := s.Open(sealed)
	return string(b), err
}
