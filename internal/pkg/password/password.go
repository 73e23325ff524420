package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const MinLength = 6

var ErrTooShort = errors.New("password must be at least 6 characters")

func Validate(plain string) error {
	if len([]rune(plain)) < MinLength {
		return ErrTooShort
	}
	return nil
}

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns nil when plain matches the stored hash.
func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
