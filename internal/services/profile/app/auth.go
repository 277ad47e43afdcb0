package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
)

// IssueToken mints a signed bearer token for an account. The subject claim
// carries the account id the profile endpoint authorizes against.
func IssueToken(secret []byte, accountID string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// accountFromRequest validates the bearer token and returns its subject.
func accountFromRequest(r *http.Request, secret []byte, clock func() time.Time) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "missing bearer token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(clock),
		jwt.WithExpirationRequired(),
	)
	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid bearer token", err)
	}
	if claims.Subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "token has no subject")
	}
	return claims.Subject, nil
}
