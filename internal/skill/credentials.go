// ABOUTME: App credentials for authenticating skill connections.
// ABOUTME: Mints and verifies HS256 JWT bearer tokens carrying the app id.

package skill

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// AppCredentials mints bearer tokens for outbound skill connections and
// verifies tokens on inbound ones. Both sides share the app secret.
type AppCredentials struct {
	appID  string
	secret []byte
}

// NewAppCredentials creates credentials for the given app id and secret.
func NewAppCredentials(appID, secret string) *AppCredentials {
	return &AppCredentials{appID: appID, secret: []byte(secret)}
}

// AppID returns the application id the credentials were created for.
func (c *AppCredentials) AppID() string {
	return c.appID
}

// Token mints a new HS256 signed bearer token with the app id as subject.
func (c *AppCredentials) Token(expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.appID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify validates a token and returns the app id from the "sub" claim.
func (c *AppCredentials) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
