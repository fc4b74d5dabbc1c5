// Package credential keeps provider API keys in the local configuration
// table without storing them in clear text. Values are sealed with
// AES-256-GCM under a key derived from the machine and user, or from the
// HEMV_SECRET passphrase when set.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

const (
	// EncryptedPrefix marks values as encrypted in storage
	EncryptedPrefix = "enc:v1:"

	// PassphraseEnv overrides the machine-derived key, so an encrypted
	// configuration can move between machines.
	PassphraseEnv = "HEMV_SECRET"
)

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid encrypted format")
)

// Manager seals and opens secret values.
type Manager struct {
	aead cipher.AEAD
}

// NewManager uses the passphrase from HEMV_SECRET when set and a
// machine-derived key otherwise.
func NewManager() (*Manager, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return NewManagerWithPassphrase(p)
	}
	return newManager(machineKey())
}

// NewManagerWithPassphrase derives the key from a passphrase.
func NewManagerWithPassphrase(passphrase string) (*Manager, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	key := sha256.Sum256([]byte("hemv-credential-v1:" + passphrase))
	return newManager(key[:])
}

func newManager(key []byte) (*Manager, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Manager{aead: gcm}, nil
}

// Encrypt encrypts a plaintext value and returns a storable string.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored value. Values without the prefix were stored in
// clear text and are returned unchanged.
func (m *Manager) Decrypt(stored string) (string, error) {
	if !IsEncrypted(stored) {
		return stored, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrInvalidFormat, err)
	}

	n := m.aead.NonceSize()
	if len(sealed) < n {
		return "", ErrInvalidFormat
	}
	plaintext, err := m.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncrypted checks if a value is already encrypted.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

func machineKey() []byte {
	var entropy strings.Builder

	hostname, _ := os.Hostname()
	entropy.WriteString(hostname)
	home, _ := os.UserHomeDir()
	entropy.WriteString(home)
	entropy.WriteString(runtime.GOOS)
	entropy.WriteString(runtime.GOARCH)
	entropy.WriteString("hemv-credential-manager-v1")
	if uid := os.Getuid(); uid != -1 {
		fmt.Fprintf(&entropy, "uid:%d", uid)
	}
	if username := os.Getenv("USER"); username != "" {
		entropy.WriteString(username)
	}

	hash := sha256.Sum256([]byte(entropy.String()))
	return hash[:]
}

// MaskSecret returns a masked version of a secret for display purposes.
// Shows only the first and last 4 characters if the secret is long enough.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// IsSecretKey reports whether a configuration key holds a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "api_key") || strings.HasSuffix(k, "token") || strings.HasSuffix(k, "secret")
}

// KV is the configuration table the vault writes to.
type KV interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
}

// Vault stores configuration values, sealing the ones that are secrets.
type Vault struct {
	kv KV
	m  *Manager
}

func NewVault(kv KV, m *Manager) *Vault {
	return &Vault{kv: kv, m: m}
}

func (v *Vault) Set(key, value string) error {
	if IsSecretKey(key) {
		sealed, err := v.m.Encrypt(value)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		value = sealed
	}
	return v.kv.SetConfig(key, value)
}

// Get returns the plain value, or an empty string when key is unset.
func (v *Vault) Get(key string) (string, error) {
	stored, err := v.kv.GetConfig(key)
	if err != nil {
		return "", err
	}
	plain, err := v.m.Decrypt(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}
