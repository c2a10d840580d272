// Package device is the local half of push for the command line client. It
// keeps the permission decision, the registration marker and the active push
// handle as files in one directory.
package device

import (
	"bufio"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/push"
)

const (
	permissionFile   = "permission"
	registrationFile = "registration.json"
	handleFile       = "subscription.json"
)

// Device implements push.PermissionGate and push.RegistrationLocator.
type Device struct {
	dir            string
	pushServiceURL string

	// prompt input and output for Request
	in  io.Reader
	out io.Writer

	// lines is fed by one reader goroutine that lives until in is exhausted.
	// A line typed after a cancelled prompt answers the next one.
	lines    chan string
	readOnce sync.Once

	mu sync.Mutex
}

// New returns a device rooted at dir. Endpoints are created under
// pushServiceURL. Permission prompts read from in and write to out.
func New(dir, pushServiceURL string, in io.Reader, out io.Writer) *Device {
	return &Device{
		dir:            dir,
		pushServiceURL: strings.TrimRight(pushServiceURL, "/"),
		in:             in,
		out:            out,
	}
}

// ─────────────────────────────────────────────────────────────────
// Permission
// ─────────────────────────────────────────────────────────────────

// Permission returns the stored decision. No file means undecided.
func (d *Device) Permission(_ context.Context) (domain.Permission, error) {
	data, err := os.ReadFile(d.path(permissionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.PermissionDefault, nil
	}
	if err != nil {
		return domain.PermissionDefault, fmt.Errorf("read permission: %w", err)
	}
	return domain.ParsePermission(strings.TrimSpace(string(data))), nil
}

// Request asks on the terminal. An empty answer or end of input dismisses the
// prompt and leaves the permission undecided.
func (d *Device) Request(ctx context.Context) (domain.Permission, error) {
	if _, err := fmt.Fprint(d.out, "Allow notifications? [y/N] "); err != nil {
		return domain.PermissionDefault, fmt.Errorf("prompt: %w", err)
	}

	var line string
	select {
	case <-ctx.Done():
		return domain.PermissionDefault, ctx.Err()
	case l, ok := <-d.input():
		if ok {
			line = strings.ToLower(strings.TrimSpace(l))
		}
	}

	var perm domain.Permission
	switch line {
	case "y", "yes":
		perm = domain.PermissionGranted
	case "n", "no":
		perm = domain.PermissionDenied
	default:
		return domain.PermissionDefault, nil
	}
	if err := d.SetPermission(perm); err != nil {
		return domain.PermissionDefault, err
	}
	return perm, nil
}

// input starts the line reader on first use. The channel is closed at end
// of input.
func (d *Device) input() <-chan string {
	d.readOnce.Do(func() {
		d.lines = make(chan string)
		go func() {
			defer close(d.lines)
			r := bufio.NewReader(d.in)
			for {
				line, err := r.ReadString('\n')
				if line != "" {
					d.lines <- line
				}
				if err != nil {
					return
				}
			}
		}()
	})
	return d.lines
}

// SetPermission stores a decision. PermissionDefault clears it.
func (d *Device) SetPermission(perm domain.Permission) error {
	if perm == domain.PermissionDefault {
		if err := os.Remove(d.path(permissionFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reset permission: %w", err)
		}
		return nil
	}
	return d.writeFile(permissionFile, []byte(string(perm)+"\n"))
}

// ─────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────

type registrationRecord struct {
	ID           string    `json:"id"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Register creates the device registration. Registering twice keeps the
// first one.
func (d *Device) Register() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var rec registrationRecord
	if err := d.readJSON(registrationFile, &rec); err == nil {
		return rec.ID, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	rec = registrationRecord{ID: uuid.NewString(), RegisteredAt: time.Now().UTC()}
	if err := d.writeJSON(registrationFile, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Unregister removes the registration and any handle created on it.
func (d *Device) Unregister() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range []string{handleFile, registrationFile} {
		if err := os.Remove(d.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Registration returns domain.ErrRegistrationMissing until Register ran.
func (d *Device) Registration(_ context.Context) (push.Registration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var rec registrationRecord
	if err := d.readJSON(registrationFile, &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrRegistrationMissing
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRegistrationMissing, err)
	}
	return &registration{device: d, id: rec.ID}, nil
}

type registration struct {
	device *Device
	id     string
}

// handleRecord is what a handle persists. The private key stays on disk so
// that the device could decrypt payloads.
type handleRecord struct {
	Registration string              `json:"registration"`
	Subscription domain.Subscription `json:"subscription"`
	PrivateKey   string              `json:"privateKey"`
	ServerKey    string              `json:"applicationServerKey"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func (r *registration) Subscription(_ context.Context) (push.Handle, error) {
	d := r.device
	d.mu.Lock()
	defer d.mu.Unlock()

	var rec handleRecord
	if err := d.readJSON(handleFile, &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Registration != r.id {
		// Left over from an older registration
		return nil, nil
	}
	return &handle{device: d, sub: rec.Subscription}, nil
}

// Subscribe creates a fresh key pair and endpoint for this device.
func (r *registration) Subscribe(_ context.Context, opts push.SubscribeOptions) (push.Handle, error) {
	if !opts.UserVisibleOnly {
		return nil, errors.New("only user visible subscriptions are supported")
	}
	if len(opts.ApplicationServerKey) == 0 {
		return nil, push.ErrInvalidServerKey
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("generate auth secret: %w", err)
	}

	d := r.device
	rec := handleRecord{
		Registration: r.id,
		Subscription: domain.Subscription{
			Endpoint: d.pushServiceURL + "/" + uuid.NewString(),
			Keys: domain.SubscriptionKeys{
				P256DH: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
				Auth:   base64.RawURLEncoding.EncodeToString(auth),
			},
		},
		PrivateKey: base64.RawURLEncoding.EncodeToString(priv.Bytes()),
		ServerKey:  base64.RawURLEncoding.EncodeToString(opts.ApplicationServerKey),
		CreatedAt:  time.Now().UTC(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeJSON(handleFile, rec); err != nil {
		return nil, err
	}
	return &handle{device: d, sub: rec.Subscription}, nil
}

type handle struct {
	device *Device
	sub    domain.Subscription
}

func (h *handle) Subscription() domain.Subscription {
	return h.sub
}

// Unsubscribe removes the stored handle. It reports false when the stored
// handle is a different one.
func (h *handle) Unsubscribe(_ context.Context) (bool, error) {
	d := h.device
	d.mu.Lock()
	defer d.mu.Unlock()

	var rec handleRecord
	if err := d.readJSON(handleFile, &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if rec.Subscription.Endpoint != h.sub.Endpoint {
		return false, nil
	}
	if err := os.Remove(d.path(handleFile)); err != nil {
		return false, fmt.Errorf("remove subscription: %w", err)
	}
	return true, nil
}

// ─────────────────────────────────────────────────────────────────
// Files
// ─────────────────────────────────────────────────────────────────

func (d *Device) path(name string) string {
	return filepath.Join(d.dir, name)
}

func (d *Device) readJSON(name string, v any) error {
	data, err := os.ReadFile(d.path(name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (d *Device) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return d.writeFile(name, data)
}

func (d *Device) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(d.dir, 0700); err != nil {
		return fmt.Errorf("create device dir: %w", err)
	}
	if err := os.WriteFile(d.path(name), data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
