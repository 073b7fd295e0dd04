package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "sealed:v1:"

// Sealed encrypts with XChaCha20-Poly1305. Tokens are
// "sealed:v1:" + base64url(nonce || ciphertext).
type Sealed struct {
	aead cipher.AEAD
}

// NewSealed creates a Sealed cipher from a 32 byte key.
func NewSealed(key []byte) (*Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid sealing key: %w", err)
	}
	return &Sealed{aead: aead}, nil
}

// Encrypt implements Encrypter.
func (s *Sealed) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open implements Opener.
func (s *Sealed) Open(token string) (string, error) {
	body, ok := strings.CutPrefix(token, sealedPrefix)
	if !ok {
		return "", ErrMalformedToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", ErrMalformedToken
	}
	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return string(plain), nil
}
