// Package auth issues and verifies the bearer tokens that identify the
// acting user and role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/authz"
)

// Claims carries the standard claims plus the actor's user name and role.
type Claims struct {
	jwt.RegisteredClaims
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

func GenerateToken(actor authz.Actor, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserName,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserName: actor.UserName,
		Role:     actor.Role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the actor it names. Expired
// tokens yield common.ErrTokenExpired; any other failure common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (authz.Actor, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return authz.Actor{}, common.ErrTokenExpired
		}
		return authz.Actor{}, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserName == "" {
		return authz.Actor{}, common.ErrInvalidToken
	}

	return authz.Actor{UserName: claims.UserName, Role: claims.Role}, nil
}
