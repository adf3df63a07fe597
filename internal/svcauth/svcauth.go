// Package svcauth mints and verifies the HS256 service tokens that
// authenticate calls between the transaction service and the card service.
package svcauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix    = "Bearer "
	defaultTokenTTL = 2 * time.Minute
)

var (
	ErrInvalidConfig = errors.New("invalid svcauth config")
	ErrInvalidToken  = errors.New("invalid service token")
)

// Signer mints short-lived service tokens.
type Signer struct {
	secret []byte
	issuer string
	nowFn  func() time.Time
	ttl    time.Duration
}

// NewSigner wires a Signer for the given shared secret and issuer name.
func NewSigner(secret string, issuer string, now func() time.Time) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidConfig)
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("%w: empty issuer", ErrInvalidConfig)
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: []byte(secret), issuer: issuer, nowFn: now, ttl: defaultTokenTTL}, nil
}

// Token returns a signed bearer token.
func (signer *Signer) Token() (string, error) {
	issuedAt := signer.nowFn()
	claims := jwt.RegisteredClaims{
		Issuer:    signer.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(signer.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signer.secret)
}

// Verify parses and validates a bearer token, returning the issuer.
func Verify(secret string, rawToken string) (string, error) {
	token, err := jwt.ParseWithClaims(rawToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Issuer, nil
}

// GinMiddleware rejects requests without a valid service token.
func GinMiddleware(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing service token",
			})
			return
		}
		issuer, err := Verify(secret, strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "invalid service token",
			})
			return
		}
		ctx.Set("svc_issuer", issuer)
		ctx.Next()
	}
}
