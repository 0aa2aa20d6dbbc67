package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature,
// malformed structure, or an expiry at or before now. Callers never learn
// which one it was.
var ErrInvalidToken = errors.New("security: invalid token")

// userClaims are the claims embedded in an identity token.
type userClaims struct {
	jwt.RegisteredClaims
}

// IssueUserToken signs an identity token for the user with the given TTL.
// The subject is the user id in decimal string form.
func IssueUserToken(secret string, userID uint64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := userClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// ParseUserToken verifies a token and returns the embedded user id.
// Tokens are stateless; there is no revocation list, validity is signature
// plus expiry only.
func ParseUserToken(secret, tokenString string) (uint64, error) {
	var claims userClaims
	token, errParse := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	userID, errID := strconv.ParseUint(claims.Subject, 10, 64)
	if errID != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
