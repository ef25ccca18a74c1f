package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realms carried in token claims. User tokens are minted by the external
// account service; admin tokens by the back-office.
const (
	RealmUser  = "user"
	RealmAdmin = "admin"
)

// Claims is the token payload this subsystem understands.
type Claims struct {
	UserID string `json:"uid"`
	Realm  string `json:"realm"`
	jwt.RegisteredClaims
}

// Manager verifies HS256 tokens. Issue exists for tests and local tooling;
// production tokens come from the account service sharing the same secret.
type Manager struct {
	secret []byte
	expiry time.Duration
}

func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{secret: []byte(secret), expiry: expiry}
}

// Issue mints a token for the given user and realm.
func (m *Manager) Issue(userID uuid.UUID, realm string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.String(),
		Realm:  realm,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("invalid user id in token")
	}
	return claims, nil
}
