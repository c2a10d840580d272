package device

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/push"
)

func newDevice(t *testing.T, input string) (*Device, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return New(t.TempDir(), "https://push.example/send/", strings.NewReader(input), out), out
}

func TestPermission_Prompt(t *testing.T) {
	tests := []struct {
		input string
		want  domain.Permission
		// stored is what a later Permission() returns
		stored domain.Permission
	}{
		{"y\n", domain.PermissionGranted, domain.PermissionGranted},
		{"YES\n", domain.PermissionGranted, domain.PermissionGranted},
		{"n\n", domain.PermissionDenied, domain.PermissionDenied},
		{"\n", domain.PermissionDefault, domain.PermissionDefault},
		{"", domain.PermissionDefault, domain.PermissionDefault},
		{"maybe\n", domain.PermissionDefault, domain.PermissionDefault},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			ctx := context.Background()
			d, out := newDevice(t, tt.input)

			perm, err := d.Permission(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.PermissionDefault, perm)

			perm, err = d.Request(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, perm)
			assert.Contains(t, out.String(), "Allow notifications? [y/N]")

			perm, err = d.Permission(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, perm)
		})
	}
}

func TestRequest_KeepsBufferedAnswers(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, "maybe\ny\n")

	perm, err := d.Request(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionDefault, perm)

	perm, err = d.Request(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, perm, "second line answers the second prompt")

	perm, err = d.Request(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionDefault, perm, "end of input dismisses")
}

func TestRequest_CancelledPromptHandsLineToNext(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	d := New(t.TempDir(), "https://push.example/send/", pr, io.Discard)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Request(cancelled)
	require.ErrorIs(t, err, context.Canceled)

	go func() { _, _ = pw.Write([]byte("yes\n")) }()

	perm, err := d.Request(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, perm)
}

func TestSetPermission_Reset(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, "")

	require.NoError(t, d.SetPermission(domain.PermissionDenied))
	perm, _ := d.Permission(ctx)
	assert.Equal(t, domain.PermissionDenied, perm)

	require.NoError(t, d.SetPermission(domain.PermissionDefault))
	require.NoError(t, d.SetPermission(domain.PermissionDefault))
	perm, _ = d.Permission(ctx)
	assert.Equal(t, domain.PermissionDefault, perm)
}

func TestRegistration_Missing(t *testing.T) {
	d, _ := newDevice(t, "")

	_, err := d.Registration(context.Background())
	assert.ErrorIs(t, err, domain.ErrRegistrationMissing)
}

func TestRegister_Idempotent(t *testing.T) {
	d, _ := newDevice(t, "")

	first, err := d.Register()
	require.NoError(t, err)
	second, err := d.Register()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, "")
	_, err := d.Register()
	require.NoError(t, err)

	reg, err := d.Registration(ctx)
	require.NoError(t, err)

	h, err := reg.Subscription(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)

	serverKey := make([]byte, 65)
	serverKey[0] = 0x04
	h, err = reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: serverKey})
	require.NoError(t, err)

	sub := h.Subscription()
	assert.True(t, strings.HasPrefix(sub.Endpoint, "https://push.example/send/"), sub.Endpoint)
	p256dh, err := base64.RawURLEncoding.DecodeString(sub.Keys.P256DH)
	require.NoError(t, err)
	_, err = ecdh.P256().NewPublicKey(p256dh)
	assert.NoError(t, err, "p256dh must be a P-256 point")
	auth, err := base64.RawURLEncoding.DecodeString(sub.Keys.Auth)
	require.NoError(t, err)
	assert.Len(t, auth, 16)

	// A fresh lookup finds the persisted handle
	again, err := reg.Subscription(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, sub, again.Subscription())

	revoked, err := h.Unsubscribe(ctx)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = h.Unsubscribe(ctx)
	require.NoError(t, err)
	assert.False(t, revoked)

	after, err := reg.Subscription(ctx)
	require.NoError(t, err)
	assert.Nil(t, after)
}

func TestSubscribe_RequiresUserVisible(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, "")
	_, err := d.Register()
	require.NoError(t, err)
	reg, err := d.Registration(ctx)
	require.NoError(t, err)

	_, err = reg.Subscribe(ctx, push.SubscribeOptions{ApplicationServerKey: []byte{0x04}})
	assert.Error(t, err)
}

func TestUnregister_DropsHandle(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, "")
	_, err := d.Register()
	require.NoError(t, err)
	reg, _ := d.Registration(ctx)
	_, err = reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: []byte{0x04}})
	require.NoError(t, err)

	require.NoError(t, d.Unregister())
	require.NoError(t, d.Unregister())

	_, err = d.Registration(ctx)
	assert.ErrorIs(t, err, domain.ErrRegistrationMissing)
}
