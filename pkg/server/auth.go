// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Operation mirrors the teacher's protocol.Operation distinction between a
// read-only and a read-write capability, scoped down to what §6's Push/Pull
// RPC actually needs.
type Operation int

const (
	Download Operation = iota
	Upload
)

func (o Operation) String() string {
	if o == Upload {
		return "upload"
	}
	return "download"
}

// Claims is the JWT payload a bearer token carries: which operation it was
// issued for, plus the standard registered claims (expiry, issued-at).
type Claims struct {
	Operation Operation `json:"operation"`
	jwt.RegisteredClaims
}

// Match reports whether a token carrying this Claims authorizes required.
// An upload token also authorizes download, the way a push credential is
// also good for a pull; a download token never authorizes upload.
func (c *Claims) Match(required Operation) bool {
	if required == Download {
		return true
	}
	return c.Operation == Upload
}

// GenerateToken issues a bearer token for op, signed with secret, good for
// ttl starting now.
func GenerateToken(secret []byte, op Operation, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Operation: op,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseBearerToken(auth string) (string, bool) {
	if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return auth[len(bearerPrefix):], true
}

// parseToken validates tokenString against secret and returns its Claims.
func parseToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// requireBearer wraps next behind a bearer-JWT check, rejecting any token
// that does not authorize required (§6's Push/Pull RPC is always bearer
// authenticated; there is no anonymous path).
func requireBearer(secret []byte, required Operation, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := parseBearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		claims, err := parseToken(secret, token)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
				writeError(w, http.StatusForbidden, err)
			case errors.Is(err, jwt.ErrTokenSignatureInvalid):
				writeError(w, http.StatusForbidden, err)
			default:
				writeError(w, http.StatusBadRequest, err)
			}
			return
		}
		if !claims.Match(required) {
			writeError(w, http.StatusForbidden, errors.New("token does not authorize this operation"))
			return
		}
		next(w, r)
	}
}
