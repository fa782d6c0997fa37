package auth

import "golang.org/x/crypto/bcrypt"

// CredentialVerifier is the generic interface the core's Auth/Session
// collaborator exposes for password checks. The full bcrypt-heavy
// authentication worker pool is out of scope (spec §1); this is the
// narrow, synchronous shape a test double or the real service satisfies.
type CredentialVerifier interface {
	Verify(password, hash string) bool
	Hash(password string) (string, error)
}

// BcryptVerifier is a minimal reference implementation so the interface
// above has at least one concrete, ecosystem-grounded body.
type BcryptVerifier struct {
	Cost int
}

func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{Cost: bcrypt.DefaultCost}
}

func (b *BcryptVerifier) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (b *BcryptVerifier) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
