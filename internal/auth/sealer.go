package auth

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrCorruptSeal is returned when a sealed value cannot be opened
var ErrCorruptSeal = errors.New("sealed value is corrupt or was sealed with another key")

// Sealer encrypts stored LeetCode credentials with a symmetric key
type Sealer struct {
	key [32]byte
}

// NewSealer builds a Sealer from a 64 character hex key
func NewSealer(hexKey string) (*Sealer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "encryption key is not hex")
	}
	if len(raw) != 32 {
		return nil, errors.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext as hex(nonce || box)
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return hex.EncodeToString(box), nil
}

// Open reverses Seal
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorruptSeal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrCorruptSeal
	}
	return string(plain), nil
}
