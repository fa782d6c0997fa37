// Package auth models the Auth/Session and User Restrictions external
// collaborators the trading core consumes (spec §6). The core never owns
// credentials; it only verifies a bearer token and asks a restrictions
// checker before capital-affecting actions.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/epic1st/contestcore/internal/coreerrors"
)

// Claims is the JWT payload the session service issues. UserID is the only
// field the trading core actually relies on.
type Claims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Session is what the core needs from an authenticated request.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
}

// Verifier validates a bearer token into a Session. The teacher's token.go
// read its signing key from a package-level var seeded in init(), with its
// own comment flagging that as a violation of "no hidden globals" — this
// redesign takes the secret explicitly instead.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a Verifier bound to secret. secret must be non-empty;
// the core never falls back to a hardcoded development key.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, coreerrors.New(coreerrors.KindFatal, "jwt secret must not be empty")
	}
	if issuer == "" {
		issuer = "contestcore"
	}
	return &Verifier{secret: secret, issuer: issuer}, nil
}

// Issue mints a token for session, grounded on the teacher's
// GenerateJWTWithSecret shape, generalized from a broker User to a Session.
func (v *Verifier) Issue(session Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      session.UserID,
		Email:       session.Email,
		DisplayName: session.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates tokenString, returning the Session it
// asserts. Failures are always KindAuthN per spec §6: "session lookup
// failures are Unauthorized".
func (v *Verifier) Verify(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Session{}, coreerrors.Wrap(coreerrors.KindAuthN, "invalid session token", err)
	}
	return Session{UserID: claims.UserID, Email: claims.Email, DisplayName: claims.DisplayName}, nil
}
