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

// Package egress is the subscribe-side mirror of ingress: verify token,
// check trust and policy, heartbeat, allocate a bus queue, and stream
// it out. Bus registration and disconnect cleanup are grounded on
// session.Manager's snapshot-then-iterate discipline; the keepalive
// cadence is grounded on the teacher's time.Ticker idiom
// (session/manager.go's cleanup loop, runtime's sweeper) generalized
// from a persistent bidirectional websocket
// (pkg/agent/transport/websocket.WSServer) to a one-way SSE stream,
// the wire format spec.md §4.9/§6 calls for instead.
package egress

import (
	"context"
	"time"

	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/internal/metrics"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/policy"
	"github.com/sage-x-project/abi/runtime"
	"github.com/sage-x-project/abi/token"
)

// DefaultKeepalive is the default interval between keepalive comment frames.
const DefaultKeepalive = 12 * time.Second

// Subscription is an admitted subscribe request: a live bus queue the
// caller must drain and eventually Close to deregister.
type Subscription struct {
	Queue *bus.Queue
	AEID  string
	Topic string

	bus   *bus.Bus
	closed bool
}

// Close deregisters the subscription's queue from the bus. Safe to call
// more than once.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.bus.Unsubscribe(s.Topic, s.Queue)
}

// Service wires token verification, trust/policy checks, heartbeat, and
// bus registration into a single Subscribe call.
type Service struct {
	Tokens  *token.Service
	Keyring *keyring.Keyring
	Policy  *policy.Engine
	Runtime *runtime.Registry
	Bus     *bus.Bus
}

// New builds an egress Service from its components.
func New(tokens *token.Service, kr *keyring.Keyring, eng *policy.Engine, reg *runtime.Registry, b *bus.Bus) *Service {
	return &Service{Tokens: tokens, Keyring: kr, Policy: eng, Runtime: reg, Bus: b}
}

// Subscribe runs the subscribe checkpoint: verify token, trust + policy
// check, heartbeat, then allocate and register a fresh queue for topic.
func (s *Service) Subscribe(_ context.Context, bearerToken, topic string) (*Subscription, *abierr.Error) {
	claims, aerr := s.Tokens.VerifyAccessToken(bearerToken)
	if aerr != nil {
		return nil, aerr
	}

	rec, ok := s.Keyring.GetByAEID(claims.Subject)
	if !ok || rec.Status != model.KeyTrusted {
		return nil, abierr.New(abierr.Forbidden, abierr.ReasonNotTrusted)
	}

	roles := rec.Roles
	if len(roles) == 0 {
		roles = claims.Roles
	}
	if !s.Policy.CanSubscribe(claims.Subject, topic, roles) {
		metrics.PolicyDenials.WithLabelValues("subscribe").Inc()
		return nil, abierr.New(abierr.Forbidden, abierr.ReasonPolicyDenied)
	}

	s.Runtime.Heartbeat(claims.Subject, claims.SessionID, model.SourceSubscribe, "subscribe", topic, "normal", nil)

	q := s.Bus.Subscribe(topic)
	return &Subscription{Queue: q, AEID: claims.Subject, Topic: topic, bus: s.Bus}, nil
}
