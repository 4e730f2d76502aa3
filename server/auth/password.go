package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength keeps trivially guessable passwords out at the door;
// strength estimation beyond length is a client concern.
const minPasswordLength = 8

// ErrPasswordTooShort is returned when a registration password is below the
// minimum length.
var ErrPasswordTooShort = errors.Errorf("password must be at least %d characters", minPasswordLength)

// HashPassword derives a bcrypt hash for storage.
func HashPassword(password string) ([]byte, error) {
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword compares a candidate password against a stored hash.
func CheckPassword(hashed []byte, password string) error {
	return bcrypt.CompareHashAndPassword(hashed, []byte(password))
}
