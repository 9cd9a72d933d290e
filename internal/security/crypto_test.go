package security

import (
	"bytes"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}

	if len(salt1) != SaltSize {
		t.Errorf("salt size: got %d, want %d", len(salt1), SaltSize)
	}

	// Salts should be unique
	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}

	if bytes.Equal(salt1, salt2) {
		t.Error("salts should be unique")
	}
}

func TestDeriveKey(t *testing.T) {
	masterKey := []byte("test-master-key")
	salt := []byte("1234567890123456") // 16 bytes

	key := DeriveKey(masterKey, salt)

	if len(key) != KeySizeAES {
		t.Errorf("key size: got %d, want %d", len(key), KeySizeAES)
	}

	// Same key + salt should produce same derived key
	key2 := DeriveKey(masterKey, salt)
	if !bytes.Equal(key, key2) {
		t.Error("same inputs should produce same key")
	}

	// Different master key should produce different derived key
	key3 := DeriveKey([]byte("different"), salt)
	if bytes.Equal(key, key3) {
		t.Error("different master key should produce different key")
	}

	// Different salt should produce different derived key
	key4 := DeriveKey(masterKey, []byte("6543210987654321"))
	if bytes.Equal(key, key4) {
		t.Error("different salt should produce different key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	masterKey := []byte("correct-horse-battery-staple")
	plaintext := []byte("wJalrXUtnFEMI/K7MDENG/bPxRfiCY")

	data, err := Encrypt(plaintext, masterKey)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Contains(data.Ciphertext, plaintext) {
		t.Error("ciphertext should not contain plaintext")
	}

	got, err := Decrypt(data, masterKey)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip: got %q, want %q", got, plaintext)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	data, err := Encrypt([]byte("secret"), []byte("right-key"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt(data, []byte("wrong-key")); err == nil {
		t.Error("expected error decrypting with wrong key")
	}
}

func TestDecrypt_InvalidInput(t *testing.T) {
	if _, err := Decrypt(nil, []byte("key")); err == nil {
		t.Error("expected error for nil data")
	}

	bad := &EncryptedData{
		Salt:       []byte("short"),
		Nonce:      make([]byte, NonceSize),
		Ciphertext: []byte("x"),
	}
	if _, err := Decrypt(bad, []byte("key")); err == nil {
		t.Error("expected error for invalid salt size")
	}
}

func TestSealOpenString(t *testing.T) {
	masterKey := []byte("master")

	tests := []struct {
		name   string
		secret string
	}{
		{"webhook url", "https://hooks.slack.com/services/T00/B00/xxx"},
		{"api key", "fd-api-key-1234"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := SealString(tt.secret, masterKey)
			if err != nil {
				t.Fatalf("SealString failed: %v", err)
			}
			if tt.secret == "" && blob != nil {
				t.Error("empty secret should seal to nil")
			}

			got, err := OpenString(blob, masterKey)
			if err != nil {
				t.Fatalf("OpenString failed: %v", err)
			}
			if got != tt.secret {
				t.Errorf("round trip: got %q, want %q", got, tt.secret)
			}
		})
	}
}

func TestOpenString_BadBlob(t *testing.T) {
	if _, err := OpenString([]byte("not-json"), []byte("key")); err == nil {
		t.Error("expected error for malformed envelope")
	}
}
