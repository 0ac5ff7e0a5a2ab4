package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/challengehub/web/internal/domain"
)

// cookieKeyInfo scopes derived keys so the same secret can feed other
// purposes without key reuse.
const cookieKeyInfo = "challenge-web session cookie v1"

const derivedKeyBytes = 32

// KeyStore provides the HMAC keys that sign and verify session cookies.
type KeyStore interface {
	// SigningKey returns the current signing key and its key ID.
	SigningKey() ([]byte, string, error)

	// VerificationKey returns the key for the given key ID.
	VerificationKey(kid string) ([]byte, error)
}

// DeriveKey expands secret into a 32-byte HMAC key with HKDF-SHA256.
// The key ID is a short fingerprint of the derived key, so rotating the
// secret changes the kid and old cookies fail verification cleanly.
func DeriveKey(secret domain.SecretString) (key []byte, kid string, err error) {
	if secret.IsEmpty() {
		return nil, "", fmt.Errorf("derive cookie key: %w", domain.ErrConfigRequired)
	}

	r := hkdf.New(sha256.New, []byte(secret.Expose()), nil, []byte(cookieKeyInfo))
	key = make([]byte, derivedKeyBytes)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, "", fmt.Errorf("derive cookie key: %w", err)
	}

	sum := sha256.Sum256(key)
	return key, hex.EncodeToString(sum[:4]), nil
}

// StaticKeyStore is a KeyStore backed by in-memory keys.
type StaticKeyStore struct {
	mu         sync.RWMutex
	signingKey []byte
	keyID      string
	keys       map[string][]byte
}

// NewStaticKeyStore creates a StaticKeyStore with a single key.
func NewStaticKeyStore(key []byte, keyID string) *StaticKeyStore {
	return &StaticKeyStore{
		signingKey: key,
		keyID:      keyID,
		keys:       map[string][]byte{keyID: key},
	}
}

// NewKeyStoreFromSecret derives the signing key from secret.
func NewKeyStoreFromSecret(secret domain.SecretString) (*StaticKeyStore, error) {
	key, kid, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return NewStaticKeyStore(key, kid), nil
}

// SigningKey returns the signing key and its key ID.
func (s *StaticKeyStore) SigningKey() ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.signingKey) == 0 {
		return nil, "", fmt.Errorf("no signing key available")
	}
	return s.signingKey, s.keyID, nil
}

// VerificationKey returns the key for kid.
func (s *StaticKeyStore) VerificationKey(kid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key ID %q", kid)
	}
	return k, nil
}

// AddVerificationKey accepts cookies signed with a retired secret.
func (s *StaticKeyStore) AddVerificationKey(secret domain.SecretString) error {
	key, kid, err := DeriveKey(secret)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = key
	return nil
}
