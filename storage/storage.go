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

// Package storage defines the broker's persistence port: the
// interface-segregated store contracts every subsystem's manager talks
// to, independent of whether records live in memory or Postgres. This
// generalizes the teacher's SessionStore/NonceStore/DIDStore split
// (pkg/storage/interface.go) from agent-session/DID caching to the
// broker's five persisted entities.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sage-x-project/abi/model"
)

// ErrNotFound is returned by any store method when the requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// KeyStore persists KeyRecords.
type KeyStore interface {
	UpsertKey(ctx context.Context, rec model.KeyRecord) error
	GetKey(ctx context.Context, aeID string) (model.KeyRecord, error)
	GetKeyByFingerprint(ctx context.Context, fpr string) (model.KeyRecord, error)
	ListKeys(ctx context.Context) ([]model.KeyRecord, error)
}

// CapabilityStore persists Capabilities.
type CapabilityStore interface {
	UpsertCapability(ctx context.Context, cap model.Capability) error
	GetCapability(ctx context.Context, aeID string) (model.Capability, error)
	ListCapabilities(ctx context.Context) ([]model.Capability, error)
}

// SessionStore persists Sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// RefreshStore persists RefreshTokens.
type RefreshStore interface {
	CreateRefreshToken(ctx context.Context, rt model.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (model.RefreshToken, error)
	GetActiveRefreshTokenForSession(ctx context.Context, sessionID string) (model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, reason string) error
	RevokeAllForSession(ctx context.Context, sessionID string, reason string) error
}

// ReflectionStore persists the append-only ReflectionRecord log.
type ReflectionStore interface {
	Append(ctx context.Context, rec model.ReflectionRecord) error
	All(ctx context.Context) ([]model.ReflectionRecord, error)
	Query(ctx context.Context, q Query) ([]model.ReflectionRecord, error)
}

// Query filters a ReflectionStore.Query call. Zero values are "unset".
type Query struct {
	AEID      string
	SessionID string
	EventType string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Store aggregates every persistence port the broker needs, mirroring
// the teacher's Store interface that hands out sub-stores per entity.
type Store interface {
	KeyStore() KeyStore
	CapabilityStore() CapabilityStore
	SessionStore() SessionStore
	RefreshStore() RefreshStore
	ReflectionStore() ReflectionStore

	Close() error
	Ping(ctx context.Context) error
}
