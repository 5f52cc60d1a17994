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

// Package session owns the broker's admitted-AE session lifecycle:
// creation, touch, refresh-token rotation, and expiry. Generalized
// from the teacher's session.Manager concurrency shape (manager.go) —
// the teacher's own Session type is a ChaCha20-Poly1305 cryptographic
// channel for end-to-end encrypted messaging between agents, which the
// broker's Non-goals explicitly exclude, so this package now models a
// session as an authentication/authorization record rather than a
// cipher state machine.
package session

import "time"

// Profile is a named preset of session/refresh/access lifetimes.
type Profile struct {
	SessionLifetime time.Duration
	RefreshLifetime time.Duration
	AccessTTL       time.Duration
	MaxIdle         time.Duration
}

// DefaultProfiles returns the two built-in presets: "default" and "long_lived".
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"default": {
			SessionLifetime: 24 * time.Hour,
			RefreshLifetime: 24 * time.Hour,
			AccessTTL:       300 * time.Second,
			MaxIdle:         10 * time.Minute,
		},
		"long_lived": {
			SessionLifetime: 30 * 24 * time.Hour,
			RefreshLifetime: 30 * 24 * time.Hour,
			AccessTTL:       300 * time.Second,
			MaxIdle:         24 * time.Hour,
		},
	}
}
