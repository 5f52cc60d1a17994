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

// Package reflection is the append-only semantic observation log: a
// Store wrapping storage.ReflectionStore with record-ID/timestamp
// defaulting, and a Sink that subscribes to bus topics and normalizes
// published messages into ReflectionRecords. Generalized from the
// teacher's storage.Store interface-segregation style; the query/
// timeline convenience views supplement the distilled spec's bare
// /admin/reflect contract the way an operator-facing reflection query
// layer would.
package reflection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/internal/logger"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

// Topics the Sink subscribes to.
const (
	TopicRuntimeHeartbeat   = "ae.runtime"
	TopicRuntimeTransition  = "abi.runtime.transition"
)

// Store is a thin, typed wrapper over storage.ReflectionStore.
type Store struct {
	backend storage.ReflectionStore
	now     func() time.Time
}

// New builds a Store over backend.
func New(backend storage.ReflectionStore) *Store {
	return &Store{backend: backend, now: time.Now}
}

// Append assigns a record_id and timestamp if unset, then persists rec.
func (s *Store) Append(ctx context.Context, rec model.ReflectionRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	if rec.TS.IsZero() {
		rec.TS = s.now()
	}
	return s.backend.Append(ctx, rec)
}

// All returns every record in insertion (monotonic ts) order.
func (s *Store) All(ctx context.Context) ([]model.ReflectionRecord, error) {
	return s.backend.All(ctx)
}

// Query returns a deterministically ordered, filtered slice of records.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]model.ReflectionRecord, error) {
	return s.backend.Query(ctx, q)
}

// Timeline returns a single AE's interleaved runtime-transition and
// emit history: a query narrowed to one ae_id, ordered by the backend
// the same way Query already orders everything else.
func (s *Store) Timeline(ctx context.Context, aeID string) ([]model.ReflectionRecord, error) {
	return s.backend.Query(ctx, storage.Query{AEID: aeID})
}

// Sink subscribes to the bus and normalizes published messages into
// ReflectionRecords. Each record is appended synchronously inside the
// bus handler, so Publish returns only after the store append.
type Sink struct {
	store *Store
	log   logger.Logger
}

// NewSink builds a Sink over store.
func NewSink(store *Store) *Sink {
	return &Sink{store: store, log: logger.GetDefaultLogger().WithFields(logger.String("component", "reflection.sink"))}
}

// Attach registers the sink's handlers on b for the heartbeat and
// transition topics. Call once during broker construction.
func (s *Sink) Attach(b *bus.Bus) {
	b.RegisterHandler(TopicRuntimeHeartbeat, s.onHeartbeat)
	b.RegisterHandler(TopicRuntimeTransition, s.onTransition)
}

func (s *Sink) onHeartbeat(_ string, message map[string]any) {
	rec := model.ReflectionRecord{
		Domain:    model.DomainRuntime,
		EventType: TopicRuntimeHeartbeat,
		Severity:  model.SeverityInfo,
		Source:    stringField(message, "source"),
		Intent:    stringField(message, "intent"),
		Subject:   stringField(message, "subject"),
		Quality:   stringField(message, "quality"),
		Correlation: model.Correlation{
			AEID:       stringField(message, "ae_id"),
			SessionID:  stringField(message, "session_id"),
			Confidence: model.ConfidenceHigh,
		},
		Payload: message,
	}
	s.appendAsync(rec)
}

func (s *Sink) onTransition(_ string, message map[string]any) {
	rec := model.ReflectionRecord{
		Domain:    model.DomainRuntime,
		EventType: TopicRuntimeTransition,
		Severity:  model.SeverityWarn,
		Source:    "runtime.sweeper",
		Correlation: model.Correlation{
			AEID:       stringField(message, "ae_id"),
			SessionID:  stringField(message, "session_id"),
			Confidence: model.ConfidenceHigh,
		},
		Transitions: []model.Transition{{
			Name:   "runtime_state",
			From:   stringField(message, "from"),
			To:     stringField(message, "to"),
			Reason: stringField(message, "reason"),
			TS:     time.Now(),
		}},
		Payload: message,
	}
	s.appendAsync(rec)
}

func (s *Sink) appendAsync(rec model.ReflectionRecord) {
	if err := s.store.Append(context.Background(), rec); err != nil {
		s.log.Error("failed to append reflection record",
			logger.String("event_type", rec.EventType),
			logger.Error(err))
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
