package utils

import "golang.org/x/crypto/bcrypt"

// passwordCost stays at the library default; employee logins are
// interactive, so there is headroom to raise it here later.
const passwordCost = bcrypt.DefaultCost

// HashPassword derives the stored form of an employee password.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
}

// ComparePassword reports a mismatch as a non-nil error.
func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
