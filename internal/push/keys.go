package push

import (
	"crypto/ecdh"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidServerKey is returned for an application server key that is not
// a base64 encoded uncompressed P-256 public key.
var ErrInvalidServerKey = errors.New("invalid application server key")

// DecodeApplicationServerKey decodes a VAPID public key. Both the URL-safe
// and the standard alphabet are accepted, with or without padding.
func DecodeApplicationServerKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidServerKey)
	}

	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServerKey, err)
	}
	if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServerKey, err)
	}
	return raw, nil
}
