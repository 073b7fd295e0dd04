// Package encryption provides the content encryption capability used when a
// script is registered. The archive core only ever sees the resulting token.
package encryption

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Schemes
const (
	SchemeOpaque = "opaque"
	SchemeSealed = "sealed"
)

// ErrMalformedToken is returned when a token cannot be opened.
var ErrMalformedToken = errors.New("malformed ciphertext token")

// Encrypter turns plaintext into an opaque ciphertext token.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Opener reverses an Encrypter. Only external capabilities (for example a
// remote analyzer) hold one; the archive core never does.
type Opener interface {
	Open(token string) (string, error)
}

// Cipher is an Encrypter that can also open its own tokens.
type Cipher interface {
	Encrypter
	Opener
}

const opaquePrefix = "FHE-"

// Opaque produces "FHE-" tokens compatible with records written by the
// browser client: base64 of the JSON-encoded plaintext. It hides nothing and
// exists for interoperability and local development.
type Opaque struct{}

// Encrypt implements Encrypter.
func (Opaque) Encrypt(plaintext string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // match JSON.stringify
	if err := enc.Encode(plaintext); err != nil {
		return "", fmt.Errorf("failed to encode plaintext: %w", err)
	}
	raw := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return opaquePrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// Open implements Opener.
func (Opaque) Open(token string) (string, error) {
	body, ok := strings.CutPrefix(token, opaquePrefix)
	if !ok {
		return "", ErrMalformedToken
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	var plaintext string
	if err := json.Unmarshal(raw, &plaintext); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return plaintext, nil
}

// New returns the Cipher for scheme. The sealed scheme needs a base64
// encoded 32 byte key.
func New(scheme, key string) (Cipher, error) {
	switch scheme {
	case SchemeOpaque, "":
		return Opaque{}, nil
	case SchemeSealed:
		k, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("encryption key is not base64: %w", err)
		}
		return NewSealed(k)
	default:
		return nil, fmt.Errorf("unknown encryption scheme: %s", scheme)
	}
}
