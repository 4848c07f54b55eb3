package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Credentials decides how stored passwords are written and checked.
type Credentials interface {
	// Prepare converts a password entered by an administrator into its stored form.
	Prepare(password string) (string, error)
	// Verify reports whether presented matches the stored value.
	Verify(stored, presented string) bool
}

// Plaintext stores passwords verbatim and compares them by exact equality.
type Plaintext struct{}

func (Plaintext) Prepare(password string) (string, error) { return password, nil }

func (Plaintext) Verify(stored, presented string) bool { return stored == presented }

// Bcrypt stores bcrypt hashes. Stored values that are not bcrypt hashes are
// compared verbatim so collections written by Plaintext keep working.
type Bcrypt struct{}

func (Bcrypt) Prepare(password string) (string, error) {
	if isBcryptHash(password) {
		return password, nil
	}
	return HashPassword(password)
}

func (Bcrypt) Verify(stored, presented string) bool {
	if isBcryptHash(stored) {
		return VerifyPassword(stored, presented) == nil
	}
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// CredentialsByName maps a configuration value to a scheme.
func CredentialsByName(name string) (Credentials, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "plaintext", "plain":
		return Plaintext{}, nil
	case "bcrypt":
		return Bcrypt{}, nil
	}
	return nil, errors.New("unknown credentials scheme: " + name)
}
