package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// TokenTTL is the lifetime of issued bearer tokens
const TokenTTL = 24 * time.Hour

// Claims is the JWT payload. user_data is a projection for clients;
// the gate trusts the signature only and re-fetches the user so that
// active/inactive changes are honoured.
type Claims struct {
	UserData *models.User `json:"user_data,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for a user
func IssueToken(secret string, user *models.User, now time.Time) (string, error) {
	claims := &Claims{
		UserData: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindInternal, err, "failed to sign token")
	}
	return signed, nil
}

// ParseToken validates an HS256 bearer token and returns the user id
// from its subject claim.
func ParseToken(secret, raw string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, apierrors.Wrap(apierrors.KindUnauthorized, err, "invalid bearer token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apierrors.Wrap(apierrors.KindUnauthorized, err, "invalid token subject")
	}
	return userID, nil
}
