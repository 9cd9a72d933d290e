// Package security provides encryption for organization secrets
// (API keys, webhook URLs, OAuth tokens) at rest.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size of the salt in bytes.
	SaltSize = 16
	// NonceSize is the size of the GCM nonce in bytes.
	NonceSize = 12
	// KeySizeAES is the AES-256 key size in bytes.
	KeySizeAES = 32
	// PBKDF2Iterations is the number of PBKDF2 iterations.
	PBKDF2Iterations = 100000
)

// EncryptedData holds the components needed to decrypt data.
type EncryptedData struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives an AES-256 key from a master key and salt using PBKDF2.
func DeriveKey(masterKey, salt []byte) []byte {
	return pbkdf2.Key(masterKey, salt, PBKDF2Iterations, KeySizeAES, sha256.New)
}

// Encrypt encrypts plaintext using AES-256-GCM with a key derived from masterKey.
func Encrypt(plaintext, masterKey []byte) (*EncryptedData, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	key := DeriveKey(masterKey, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return &EncryptedData{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt decrypts data using AES-256-GCM with a key derived from masterKey.
func Decrypt(data *EncryptedData, masterKey []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("encrypted data is nil")
	}

	if len(data.Salt) != SaltSize {
		return nil, fmt.Errorf("invalid salt size: got %d, want %d", len(data.Salt), SaltSize)
	}

	if len(data.Nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(data.Nonce), NonceSize)
	}

	key := DeriveKey(masterKey, data.Salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, data.Nonce, data.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}

// SealString encrypts a secret string into a JSON envelope suitable for
// storage in a BLOB column. An empty secret seals to nil.
func SealString(secret string, masterKey []byte) ([]byte, error) {
	if secret == "" {
		return nil, nil
	}
	data, err := Encrypt([]byte(secret), masterKey)
	if err != nil {
		return nil, err
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal encrypted data: %w", err)
	}
	return blob, nil
}

// OpenString decrypts a JSON envelope produced by SealString.
// A nil or empty blob opens to the empty string.
func OpenString(blob, masterKey []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	var data EncryptedData
	if err := json.Unmarshal(blob, &data); err != nil {
		return "", fmt.Errorf("unmarshal encrypted data: %w", err)
	}
	plaintext, err := Decrypt(&data, masterKey)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
