// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package token issues and verifies the broker's short-lived access
// tokens. Generalized from oidc/auth0/auth0.go's use of
// github.com/golang-jwt/jwt/v5 — that file verifies third-party OIDC
// ID tokens against a JWKS; here the broker is the issuer, so signing
// uses a single configured HMAC secret instead of RSA/JWKS lookup.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sage-x-project/abi/abierr"
)

// Claims is the broker's access-token claim set: {sub, sid, roles, iat, exp}.
type Claims struct {
	Subject   string   `json:"sub"`
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 access tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New builds a token Service; ttl is the access-token lifetime (default 300s if zero).
func New(secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Service{secret: secret, ttl: ttl, now: time.Now}
}

// IssueAccessToken signs {sub, sid, roles, iat, exp} with HS256.
func (s *Service) IssueAccessToken(aeID, sessionID string, roles []string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Subject:   aeID,
		SessionID: sessionID,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken validates signature and expiry, returning the parsed claims.
func (s *Service) VerifyAccessToken(tokenString string) (*Claims, *abierr.Error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, abierr.New(abierr.Unauthenticated, abierr.ReasonTokenExpired)
		}
		return nil, abierr.New(abierr.Unauthenticated, abierr.ReasonInvalidToken)
	}
	if !tok.Valid {
		return nil, abierr.New(abierr.Unauthenticated, abierr.ReasonInvalidToken)
	}
	return claims, nil
}
