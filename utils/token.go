package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is the identity carried by bearer tokens. Tokens are issued
// by the auth service; this backend only validates them.
type JwtCustomClaim struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles"`
	jwt.StandardClaims
}

func (c *JwtCustomClaim) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("MKitchen-Secret")
	}
	return []byte(secret)
}

// JwtGenerate signs a claim with the shared secret. Used by tooling and tests.
func JwtGenerate(claim JwtCustomClaim, lifespan time.Duration) (string, error) {
	now := time.Now()
	claim.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(lifespan).Unix(),
		IssuedAt:  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claim)

	token, err := t.SignedString(getJwtSecret())
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}

// ClaimFromToken validates token and returns its identity.
func ClaimFromToken(token string) (*JwtCustomClaim, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return nil, err
	}
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid || claim.ID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claim, nil
}
