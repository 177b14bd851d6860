package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthModule issues and validates the bearer tokens of the rule editor client.
// There is one client; its secret is stored as a bcrypt hash in configuration.
type AuthModule struct {
	JWTSecret        string
	clientID         string
	clientSecretHash string
	ttl              time.Duration
}

func NewAuthModule(JWTSecret, clientID, clientSecretHash string, ttl time.Duration) *AuthModule {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthModule{
		JWTSecret:        JWTSecret,
		clientID:         clientID,
		clientSecretHash: clientSecretHash,
		ttl:              ttl,
	}
}

// HashSecret returns the bcrypt hash to put in jwt.client_secret_hash
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (a *AuthModule) generateJWT(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func (a *AuthModule) authenticateClient(clientID, secret string) error {
	if a.JWTSecret == "" || a.clientSecretHash == "" {
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(clientID), []byte(a.clientID)) != 1 {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.clientSecretHash), []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// LoginWithJWT exchanges the client credentials for a signed token
func (a *AuthModule) LoginWithJWT(ctx context.Context, clientID, secret string) (string, error) {
	if err := a.authenticateClient(clientID, secret); err != nil {
		return "", err
	}
	return a.generateJWT(clientID)
}

// ValidateTokenJWT returns the subject of a valid token. A "Bearer " prefix is accepted.
func (a *AuthModule) ValidateTokenJWT(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", errors.New("missing token")
	}

	var claims jwt.RegisteredClaims
	parsedToken, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsedToken.Valid || claims.Subject != a.clientID {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
