// Package testhelpers provides utilities for testing lookout components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lookout-hq/lookout/pkg/auth"
)

// GenerateTestJWT returns an unsigned (alg: none) token accepted only when
// verification is disabled. An empty sub or email is left out of the claims.
func GenerateTestJWT(sub, email string) string {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "lookout-test",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		panic("testhelpers: signing unsigned token: " + err.Error())
	}
	return token
}

// GenerateTestJWTWithBearer returns the token as an Authorization header value.
func GenerateTestJWTWithBearer(sub, email string) string {
	return "Bearer " + GenerateTestJWT(sub, email)
}
