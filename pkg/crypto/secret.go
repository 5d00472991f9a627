package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// SealedPrefix - признак зашифрованного значения в конфигурации
const SealedPrefix = "enc:v1:"

// KeySize - длина ключа AES-256
const KeySize = 32

// Ошибки шифрования секретов конфигурации
var (
	ErrInvalidKeyLength  = errors.New("secrets key must be 32 bytes (64 hex chars or base64)")
	ErrInvalidCiphertext = errors.New("invalid sealed secret")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication error")
	ErrKeyRequired       = errors.New("sealed secret requires SECRETS_KEY")
)

// ParseKey разбирает ключ из hex (64 символа) или base64 (44 символа)
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if key, err := hex.DecodeString(s); err == nil && len(key) == KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == KeySize {
		return key, nil
	}
	return nil, ErrInvalidKeyLength
}

// GenerateKey возвращает новый случайный ключ в hex
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// IsSealed - зашифровано ли значение
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// Seal шифрует секрет AES-256-GCM: enc:v1:<base64(nonce|ciphertext|tag)>
func Seal(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open расшифровывает значение из Seal.
// Значение без префикса возвращается как есть, ключ для него не нужен.
func Open(value string, key []byte) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if len(key) == 0 {
		return "", ErrKeyRequired
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
