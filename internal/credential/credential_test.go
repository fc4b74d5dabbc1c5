package credential

import (
	"errors"
	"strings"
	"testing"
)

func TestManager_EncryptDecrypt(t *testing.T) {
	manager, err := NewManager()
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	testCases := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"simple api key", "sk-1234567890abcdef"},
		{"long key", strings.Repeat("a", 1000)},
		{"unicode content", "api-key-日本語-🔑"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := manager.Encrypt(tc.plaintext)
			if err != nil {
				t.Fatalf("encrypt failed: %v", err)
			}

			if tc.plaintext == "" {
				if encrypted != "" {
					t.Errorf("empty string should not be encrypted, got: %s", encrypted)
				}
				return
			}

			if !strings.HasPrefix(encrypted, EncryptedPrefix) {
				t.Errorf("encrypted value should have prefix, got: %s", encrypted)
			}

			decrypted, err := manager.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("decrypt failed: %v", err)
			}
			if decrypted != tc.plaintext {
				t.Errorf("decrypted value mismatch: got %q, want %q", decrypted, tc.plaintext)
			}
		})
	}
}

func TestManager_Passphrase(t *testing.T) {
	a, err := NewManagerWithPassphrase("correct horse")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	b, _ := NewManagerWithPassphrase("correct horse")
	c, _ := NewManagerWithPassphrase("battery staple")

	sealed, _ := a.Encrypt("sk-secret")
	if got, err := b.Decrypt(sealed); err != nil || got != "sk-secret" {
		t.Errorf("same passphrase should decrypt: got %q, %v", got, err)
	}
	if _, err := c.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}

	if _, err := NewManagerWithPassphrase(""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}

func TestManager_PassphraseFromEnv(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")
	fromEnv, err := NewManager()
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	explicit, _ := NewManagerWithPassphrase("from-env")

	sealed, _ := fromEnv.Encrypt("value")
	if got, _ := explicit.Decrypt(sealed); got != "value" {
		t.Errorf("expected env passphrase to be used, got %q", got)
	}
}

func TestManager_DecryptPlaintext(t *testing.T) {
	manager, _ := NewManager()

	plaintext := "sk-not-encrypted"
	result, err := manager.Decrypt(plaintext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if result != plaintext {
		t.Errorf("plaintext should pass through unchanged: got %q, want %q", result, plaintext)
	}
}

func TestManager_DecryptInvalid(t *testing.T) {
	manager, _ := NewManager()

	testCases := []struct {
		name  string
		input string
		want  error
	}{
		{"invalid base64", EncryptedPrefix + "not-valid-base64!!!", ErrInvalidFormat},
		{"too short", EncryptedPrefix + "YWJj", ErrInvalidFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Decrypt(tc.input)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"", "****"},
		{"12345678", "****"},
		{"123456789", "1234...6789"},
		{"sk-1234567890abcdef", "sk-1...cdef"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if result := MaskSecret(tc.input); result != tc.expected {
				t.Errorf("MaskSecret(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}

type mapKV map[string]string

func (m mapKV) SetConfig(key, value string) error { m[key] = value; return nil }
func (m mapKV) GetConfig(key string) (string, error) {
	return m[key], nil
}

func TestVault(t *testing.T) {
	manager, _ := NewManagerWithPassphrase("test")
	kv := mapKV{}
	v := NewVault(kv, manager)

	if err := v.Set("openai_api_key", "sk-1234567890"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := v.Set("provider", "openai"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !IsEncrypted(kv["openai_api_key"]) {
		t.Errorf("expected api key to be stored encrypted, got %q", kv["openai_api_key"])
	}
	if kv["provider"] != "openai" {
		t.Errorf("expected plain settings to be stored as is, got %q", kv["provider"])
	}

	got, err := v.Get("openai_api_key")
	if err != nil || got != "sk-1234567890" {
		t.Errorf("expected decrypted key, got %q (%v)", got, err)
	}
	if got, _ := v.Get("unset"); got != "" {
		t.Errorf("expected empty value for unset key, got %q", got)
	}
}

func TestIsSecretKey(t *testing.T) {
	for key, want := range map[string]bool{
		"openai_api_key": true,
		"GEMINI_API_KEY": true,
		"hf_token":       true,
		"provider":       false,
		"model":          false,
	} {
		if got := IsSecretKey(key); got != want {
			t.Errorf("IsSecretKey(%q) = %v, want %v", key, got, want)
		}
	}
}
