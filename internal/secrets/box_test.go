package secrets

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := New("test-passphrase")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	plaintext := "p.secret-tinybird-token"
	token, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if token == plaintext {
		t.Error("Expected ciphertext to differ from plaintext")
	}

	decrypted, err := box.Decrypt(token)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	box, err := New("test-passphrase")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first, _ := box.Encrypt("same-input")
	second, _ := box.Encrypt("same-input")
	if first == second {
		t.Error("Expected distinct ciphertexts for repeated encryptions")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	box, _ := New("key-one")
	other, _ := New("key-two")

	token, err := box.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := other.Decrypt(token); err == nil {
		t.Error("Expected decryption with the wrong key to fail")
	}
}

func TestDecryptMalformedToken(t *testing.T) {
	box, _ := New("key")

	for _, token := range []string{"", "not-base64!!", "QQ=="} {
		if _, err := box.Decrypt(token); err == nil {
			t.Errorf("Expected error decrypting malformed token %q", token)
		}
	}
}

func TestNewEmptyPassphrase(t *testing.T) {
	if _, err := New(""); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("Expected empty passphrase error, got %v", err)
	}
}
