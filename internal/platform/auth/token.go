package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Verify for any signature, expiry or claims
// failure. The cause is wrapped for logging only.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of a portal session token.
type Claims struct {
	jwt.RegisteredClaims
	PatientID string `json:"patientId"`
	Email     string `json:"email"`
}

// Session is a freshly issued token together with its parsed claims.
type Session struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue returns a signed token embedding the patient id and email.
func (t *TokenIssuer) Issue(patientID uuid.UUID, email string) (*Session, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   patientID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		PatientID: patientID.String(),
		Email:     email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the signature, issuer and expiry of tokenStr and returns its
// claims. Tokens without a parseable patientId are rejected.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.PatientID); err != nil {
		return nil, fmt.Errorf("%w: bad patientId claim", ErrInvalidToken)
	}
	return claims, nil
}

// PatientUUID returns the parsed patientId claim.
func (c *Claims) PatientUUID() uuid.UUID {
	id, _ := uuid.Parse(c.PatientID)
	return id
}
