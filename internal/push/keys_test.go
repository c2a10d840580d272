package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeApplicationServerKey(t *testing.T) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	raw := priv.PublicKey().Bytes()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"url safe unpadded", base64.RawURLEncoding.EncodeToString(raw), false},
		{"url safe padded", base64.URLEncoding.EncodeToString(raw), false},
		{"standard alphabet", base64.StdEncoding.EncodeToString(raw), false},
		{"surrounding spaces", "  " + base64.RawURLEncoding.EncodeToString(raw) + "\n", false},
		{"empty", "", true},
		{"not base64", "!!!", true},
		{"wrong length", base64.RawURLEncoding.EncodeToString(raw[:33]), true},
		{"not on curve", base64.RawURLEncoding.EncodeToString(append([]byte{0x04}, make([]byte, 64)...)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeApplicationServerKey(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidServerKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}
