// Package credential keeps provider API keys out of the settings store in
// plain text. A key is sealed with AES-256-GCM under a key derived from this
// machine and user, and bound to the setting it is stored under, so a sealed
// value copied to another setting or another machine will not open.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// EncryptedPrefix marks a sealed setting value.
const EncryptedPrefix = "enc:v2:"

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid encrypted format")
)

// Settings is the key/value store credentials are kept in.
type Settings interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
}

// Manager seals and opens credential settings.
type Manager struct {
	aead cipher.AEAD
}

// NewManager returns a Manager keyed to the current machine and user.
func NewManager() (*Manager, error) {
	return newManager(machineKey())
}

func newManager(key []byte) (*Manager, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Manager{aead: aead}, nil
}

// machineKey hashes host, home, platform and user identity into 32 bytes.
func machineKey() []byte {
	host, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	parts := []string{"memoir-credentials", host, home, runtime.GOOS, runtime.GOARCH, os.Getenv("USER")}
	if uid := os.Getuid(); uid != -1 {
		parts = append(parts, "uid:"+strconv.Itoa(uid))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return sum[:]
}

// Seal encrypts value for the setting name. An empty value stays empty.
func (m *Manager) Seal(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value sealed for the setting name. Unsealed values, such
// as keys written by hand, are returned unchanged.
func (m *Manager) Open(name, stored string) (string, error) {
	if !IsEncrypted(stored) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	n := m.aead.NonceSize()
	if len(raw) < n {
		return "", ErrInvalidFormat
	}
	plain, err := m.aead.Open(nil, raw[:n], raw[n:], []byte(name))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// IsEncrypted reports whether value is sealed.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// IsSecretKey reports whether a settings key holds a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, ".api_key") || strings.HasSuffix(k, "_api_key") || k == "api_key"
}

// MaskSecret shows the first and last four characters of a long secret.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Put stores value under key, sealing it when the key names a credential.
func (m *Manager) Put(s Settings, key, value string) error {
	if IsSecretKey(key) && !IsEncrypted(value) {
		sealed, err := m.Seal(key, value)
		if err != nil {
			return err
		}
		value = sealed
	}
	return s.SetConfig(key, value)
}

// Get reads key, opening credentials. A missing key yields "".
func (m *Manager) Get(s Settings, key string) (string, error) {
	v, err := s.GetConfig(key)
	if err != nil || v == "" {
		return "", err
	}
	return m.Open(key, v)
}
