package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a salted bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether plain matches hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// dummyHash is compared against when the account does not exist so that
// unknown emails and wrong passwords take comparable time.
var dummyHash, _ = HashPassword("devsnippet-timing-equalizer")

// CheckPasswordOrDummy runs a comparison even when no user was found.
func CheckPasswordOrDummy(hash *string, plain string) bool {
	if hash == nil {
		_ = CheckPassword(dummyHash, plain)
		return false
	}
	return CheckPassword(*hash, plain)
}
