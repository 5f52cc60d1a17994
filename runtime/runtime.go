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

// Package runtime tracks Atomic Expert liveness across three disjoint
// partitions (live/stale/dead) with a background sweeper, generalized
// from health/checker.go's map[string]*cachedResult + sync.RWMutex +
// timer-driven pattern: here the "check" is a heartbeat rather than a
// polled probe, and demotion (not just cache expiry) is the sweeper's job.
package runtime

import (
	"sync"
	"time"

	"github.com/sage-x-project/abi/model"
)

// TransitionHook receives every promotion/demotion the registry performs.
type TransitionHook func(rec model.RuntimeRecord, from, to model.RuntimeState, reason string)

// Registry is the three-state liveness tracker.
type Registry struct {
	mu         sync.Mutex
	live       map[string]model.RuntimeRecord
	stale      map[string]model.RuntimeRecord
	dead       map[string]model.RuntimeRecord
	staleAfter time.Duration
	deadAfter  time.Duration
	hook       TransitionHook
	now        func() time.Time
}

// New builds a Registry with the given stale/dead thresholds (staleAfter < deadAfter).
func New(staleAfter, deadAfter time.Duration, hook TransitionHook) *Registry {
	return &Registry{
		live:       make(map[string]model.RuntimeRecord),
		stale:      make(map[string]model.RuntimeRecord),
		dead:       make(map[string]model.RuntimeRecord),
		staleAfter: staleAfter,
		deadAfter:  deadAfter,
		hook:       hook,
		now:        time.Now,
	}
}

// Heartbeat records activity for ae_id: creates the record on first
// sight, always re-anchors it to `live`, and emits a transition if the
// prior partition was not already live.
func (r *Registry) Heartbeat(aeID, sessionID string, source model.RuntimeSource, intent, subject, quality string, meta map[string]string) {
	now := r.now()

	r.mu.Lock()
	prevState, prev, existed := r.locate(aeID)

	rec := prev
	if !existed {
		rec = model.RuntimeRecord{
			AEID:      aeID,
			FirstSeen: now,
		}
	}
	rec.SessionID = sessionID
	rec.State = model.RuntimeLive
	rec.LastSeen = now
	rec.LastSource = source
	rec.LastIntent = intent
	rec.LastSubject = subject
	rec.Quality = quality
	rec.HeartbeatCount++
	if meta != nil {
		rec.Meta = meta
	}

	r.removeFrom(prevState, aeID)
	r.live[aeID] = rec
	r.mu.Unlock()

	if existed && prevState != model.RuntimeLive {
		r.emit(rec, prevState, model.RuntimeLive, "heartbeat")
	} else if !existed {
		r.emit(rec, "", model.RuntimeLive, "heartbeat")
	}
}

// Sweep runs one demotion pass: live entries idle ≥ deadAfter go to
// dead, ≥ staleAfter go to stale; stale entries idle ≥ deadAfter go to
// dead. Transition emission happens outside the critical section.
func (r *Registry) Sweep() {
	now := r.now()
	var transitions []transition

	r.mu.Lock()
	for id, rec := range r.live {
		age := clampNonNegative(now.Sub(rec.LastSeen))
		switch {
		case age >= r.deadAfter:
			delete(r.live, id)
			r.dead[id] = rec
			transitions = append(transitions, transition{rec, model.RuntimeLive, model.RuntimeDead})
		case age >= r.staleAfter:
			delete(r.live, id)
			r.stale[id] = rec
			transitions = append(transitions, transition{rec, model.RuntimeLive, model.RuntimeStale})
		}
	}
	for id, rec := range r.stale {
		age := clampNonNegative(now.Sub(rec.LastSeen))
		if age >= r.deadAfter {
			delete(r.stale, id)
			r.dead[id] = rec
			transitions = append(transitions, transition{rec, model.RuntimeStale, model.RuntimeDead})
		}
	}
	r.mu.Unlock()

	for _, t := range transitions {
		r.emit(t.rec, t.from, t.to, "sweep")
	}
}

type transition struct {
	rec  model.RuntimeRecord
	from model.RuntimeState
	to   model.RuntimeState
}

func (r *Registry) emit(rec model.RuntimeRecord, from, to model.RuntimeState, reason string) {
	if r.hook != nil {
		r.hook(rec, from, to, reason)
	}
}

// locate finds aeID in whichever partition currently holds it.
func (r *Registry) locate(aeID string) (model.RuntimeState, model.RuntimeRecord, bool) {
	if rec, ok := r.live[aeID]; ok {
		return model.RuntimeLive, rec, true
	}
	if rec, ok := r.stale[aeID]; ok {
		return model.RuntimeStale, rec, true
	}
	if rec, ok := r.dead[aeID]; ok {
		return model.RuntimeDead, rec, true
	}
	return "", model.RuntimeRecord{}, false
}

func (r *Registry) removeFrom(state model.RuntimeState, aeID string) {
	switch state {
	case model.RuntimeLive:
		delete(r.live, aeID)
	case model.RuntimeStale:
		delete(r.stale, aeID)
	case model.RuntimeDead:
		delete(r.dead, aeID)
	}
}

// Get returns the current record for ae_id and its partition, if any.
func (r *Registry) Get(aeID string) (model.RuntimeRecord, model.RuntimeState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, rec, ok := r.locate(aeID)
	return rec, state, ok
}

// GetLive returns a snapshot of all live records.
func (r *Registry) GetLive() []model.RuntimeRecord { return r.snapshot(r.live) }

// GetStale returns a snapshot of all stale records.
func (r *Registry) GetStale() []model.RuntimeRecord { return r.snapshot(r.stale) }

// GetDead returns a snapshot of all dead records.
func (r *Registry) GetDead() []model.RuntimeRecord { return r.snapshot(r.dead) }

// GetAll returns a snapshot of every record across all partitions.
func (r *Registry) GetAll() []model.RuntimeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.RuntimeRecord, 0, len(r.live)+len(r.stale)+len(r.dead))
	for _, m := range []map[string]model.RuntimeRecord{r.live, r.stale, r.dead} {
		for _, rec := range m {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Registry) snapshot(m map[string]model.RuntimeRecord) []model.RuntimeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.RuntimeRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	return out
}

func clampNonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
