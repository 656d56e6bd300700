package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var bcryptCost = bcrypt.DefaultCost

// comparePassword is swapped in tests to observe how often a login hashes.
var comparePassword = CheckPassword

// unknownUserHash is compared against when the email has no account, so a
// miss costs the same bcrypt run as a wrong password.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := HashPassword("unknown-user-placeholder")
	if err != nil {
		panic(err)
	}
	return hash
})

// HashPassword turns a plaintext password into a salted bcrypt hash.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword verifies a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
