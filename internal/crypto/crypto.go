// Package crypto encrypts and decrypts configuration passwords with the age
// identity held in a keystore.
package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"keycrypt/internal/keystore"
)

// ErrMalformed is returned when a ciphertext cannot be decoded.
var ErrMalformed = errors.New("malformed ciphertext")

// Service encrypts and decrypts single values.
type Service interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Provider hands out a Service. It is consulted only after the keystore it
// depends on is known to exist.
type Provider interface {
	Service() (Service, error)
}

// AgeService encrypts to the X25519 recipient of an identity and decrypts
// with the identity itself. Ciphertexts are base64 of the binary age format.
type AgeService struct {
	identity *age.X25519Identity
}

// NewAgeService returns a Service bound to identity.
func NewAgeService(identity *age.X25519Identity) *AgeService {
	return &AgeService{identity: identity}
}

// Encrypt implements Service.
func (s *AgeService) Encrypt(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("failed to create age encryption writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close age encryption writer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt implements Service.
func (s *AgeService) Decrypt(ciphertext string) (string, error) {
	ciphertext = strings.TrimSpace(ciphertext)
	if ciphertext == "" {
		return "", fmt.Errorf("%w: empty value", ErrMalformed)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(out), nil
}

// KeystoreProvider builds an AgeService from the default keystore of a factory.
type KeystoreProvider struct {
	keystores *keystore.FileFactory
}

// NewKeystoreProvider returns a Provider reading the default keystore of f.
func NewKeystoreProvider(f *keystore.FileFactory) *KeystoreProvider {
	return &KeystoreProvider{keystores: f}
}

// Service implements Provider.
func (p *KeystoreProvider) Service() (Service, error) {
	store, err := p.keystores.OpenDefault()
	if err != nil {
		return nil, err
	}
	identity, err := store.Identity()
	if err != nil {
		return nil, err
	}
	return NewAgeService(identity), nil
}
