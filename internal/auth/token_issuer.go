// Package auth issues and verifies the short-lived API access tokens handed
// out after a successful sign-in of any method.
package auth

import (
	"errors"
	"time"

	"github.com/datavault/datavault/model"
	"github.com/datavault/datavault/params"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenClaims struct {
	Email  string `json:"email,omitempty"`
	Method string `json:"method,omitempty"` // sign-in method that minted this token
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	signingKey []byte
	expiresIn  time.Duration
}

func NewTokenIssuer(signingKey string) *TokenIssuer {
	return &TokenIssuer{
		signingKey: []byte(signingKey),
		expiresIn:  params.AccessTokenExpiration,
	}
}

func (s *TokenIssuer) Issue(user *model.User, method string) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Email:  user.Email,
		Method: method,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userSubject(user.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// Verify parses the token and returns the user id it was issued for.
func (s *TokenIssuer) Verify(tokenStr string) (uint, *TokenClaims, error) {
	var claims TokenClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return 0, nil, ErrTokenExpired
	}
	if err != nil {
		return 0, nil, err
	}
	if !token.Valid {
		return 0, nil, ErrTokenInvalid
	}
	userID, err := parseUserSubject(claims.Subject)
	if err != nil {
		return 0, nil, ErrTokenInvalid
	}
	return userID, &claims, nil
}
