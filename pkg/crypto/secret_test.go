package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	s, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	key, err := ParseKey(s)
	if err != nil {
		t.Fatalf("ParseKey error: %v", err)
	}
	return key
}

func TestSealOpen(t *testing.T) {
	key := testKey(t)

	sealed, err := Seal("123456:bot-token", key)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("expected %q prefix, got %s", SealedPrefix, sealed)
	}
	if strings.Contains(sealed, "bot-token") {
		t.Error("sealed value leaks plaintext")
	}

	plain, err := Open(sealed, key)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if plain != "123456:bot-token" {
		t.Errorf("expected original value, got %q", plain)
	}
}

func TestSeal_UniqueNonce(t *testing.T) {
	key := testKey(t)

	a, _ := Seal("same", key)
	b, _ := Seal("same", key)
	if a == b {
		t.Error("two seals of the same value must differ")
	}
}

func TestOpen_PlainValuePassesThrough(t *testing.T) {
	plain, err := Open("not-sealed", nil)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if plain != "not-sealed" {
		t.Errorf("expected value unchanged, got %q", plain)
	}
}

func TestOpen_Errors(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	sealed, _ := Seal("secret", key)

	tests := []struct {
		name  string
		value string
		key   []byte
		want  error
	}{
		{"no key", sealed, nil, ErrKeyRequired},
		{"short key", sealed, []byte("short"), ErrInvalidKeyLength},
		{"wrong key", sealed, other, ErrDecryptionFailed},
		{"bad base64", SealedPrefix + "!!!", key, ErrInvalidCiphertext},
		{"too short", SealedPrefix + base64.StdEncoding.EncodeToString([]byte("abc")), key, ErrInvalidCiphertext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.value, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i)
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"hex", hex.EncodeToString(raw), false},
		{"hex with spaces", "  " + hex.EncodeToString(raw) + "\n", false},
		{"base64", base64.StdEncoding.EncodeToString(raw), false},
		{"short hex", hex.EncodeToString(raw[:16]), true},
		{"garbage", "not a key", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyLength) {
					t.Errorf("expected ErrInvalidKeyLength, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(key) != string(raw) {
				t.Error("decoded key mismatch")
			}
		})
	}
}
