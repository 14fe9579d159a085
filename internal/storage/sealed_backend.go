package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealNonceSize = 24

// ErrSealBroken is returned when a sealed record cannot be opened (wrong key
// or tampered data).
var ErrSealBroken = errors.New("sealed record could not be opened")

// SealedBackend encrypts records at rest with NaCl secretbox before handing
// them to the wrapped backend.
type SealedBackend struct {
	Backend
	key [32]byte
}

// NewSealedBackend wraps inner. The secretbox key is derived from secret with
// HKDF-SHA256.
func NewSealedBackend(inner Backend, secret string) (*SealedBackend, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("encryption key too short")
	}
	s := &SealedBackend{Backend: inner}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("taskboard session records"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return s, nil
}

func (s *SealedBackend) Name() string { return s.Backend.Name() + "+sealed" }

func (s *SealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	boxed, err := s.Backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(boxed) < sealNonceSize+secretbox.Overhead {
		return nil, ErrSealBroken
	}
	var nonce [sealNonceSize]byte
	copy(nonce[:], boxed[:sealNonceSize])
	plain, ok := secretbox.Open(nil, boxed[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealBroken
	}
	return plain, nil
}

func (s *SealedBackend) Set(ctx context.Context, key string, value []byte) error {
	var nonce [sealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	boxed := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.Backend.Set(ctx, key, boxed)
}
