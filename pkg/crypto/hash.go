package crypto

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки проверки учетных данных оператора
var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
	ErrPasswordMismatch = errors.New("password does not match hash")
	ErrInvalidHash      = errors.New("invalid bcrypt hash")
)

// DefaultCost - стоимость bcrypt для хешей из emergencyctl hash-password
const DefaultCost = 12

// MaxPasswordLength - ограничение bcrypt
const MaxPasswordLength = 72

// HashPassword хеширует пароль; cost вне [MinCost, MaxCost] приводится к границе
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword сравнивает пароль с bcrypt хешем
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// ValidateHash проверяет, что строка - корректный bcrypt хеш.
// Вызывается при загрузке конфигурации.
func ValidateHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ErrInvalidHash
	}
	return nil
}

// CheckCredentials проверяет пару логин/пароль из Basic Auth.
// Логин сравнивается за постоянное время, пароль - через bcrypt.
func CheckCredentials(user, password, wantUser, wantHash string) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1
	passErr := VerifyPassword(password, wantHash)
	return userMatch && passErr == nil
}
