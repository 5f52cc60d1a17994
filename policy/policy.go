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

// Package policy evaluates publish/subscribe decisions against a
// two-layer fence: a static subject fence loaded from config, and
// per-AE dynamic capabilities that can only narrow within it. The
// engine holds its working state as one atomically-swapped snapshot,
// generalized from config/loader.go's mtime-driven reload and the
// teacher's build-new-then-swap rotation idiom (crypto/rotation).
package policy

import (
	"sort"
	"sync/atomic"

	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/model"
)

// snapshot is one fully-built, immutable view of the policy state.
type snapshot struct {
	fence        map[string]config.SubjectFence
	capabilities map[string]model.Capability
	fenceMtime   int64
	capDigest    string
}

// Engine evaluates can_publish/can_subscribe against its current snapshot.
type Engine struct {
	cur atomic.Pointer[snapshot]
}

// NewEngine builds an Engine from an initial fence and capability set.
func NewEngine(fence map[string]config.SubjectFence, caps []model.Capability) *Engine {
	e := &Engine{}
	e.cur.Store(buildSnapshot(fence, caps, 0))
	return e
}

func buildSnapshot(fence map[string]config.SubjectFence, caps []model.Capability, mtime int64) *snapshot {
	capByAE := make(map[string]model.Capability, len(caps))
	for _, c := range caps {
		capByAE[c.AEID] = c
	}
	return &snapshot{
		fence:        fence,
		capabilities: capByAE,
		fenceMtime:   mtime,
		capDigest:    digestCapabilities(caps),
	}
}

// digestCapabilities is the stable comparison key the reloader uses to
// detect capability-table changes without re-evaluating every AE: a
// tuple of (ae_id, sorted(publishes), sorted(subscribes), updated_at)
// per capability, joined in ae_id order.
func digestCapabilities(caps []model.Capability) string {
	sorted := make([]model.Capability, len(caps))
	copy(sorted, caps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AEID < sorted[j].AEID })

	var b []byte
	for _, c := range sorted {
		pubs := append([]string(nil), c.Publishes...)
		subs := append([]string(nil), c.Subscribes...)
		sort.Strings(pubs)
		sort.Strings(subs)
		b = append(b, c.AEID...)
		b = append(b, '|')
		for _, p := range pubs {
			b = append(b, p...)
			b = append(b, ',')
		}
		b = append(b, '|')
		for _, s := range subs {
			b = append(b, s...)
			b = append(b, ',')
		}
		b = append(b, c.UpdatedAt.String()...)
		b = append(b, ';')
	}
	return string(b)
}

// Reload replaces the engine's working snapshot, to be called by a
// background reloader when the fence file's mtime or the capability
// digest changes. Reload is atomic: in-flight decisions keep using
// whichever snapshot they already captured.
func (e *Engine) Reload(fence map[string]config.SubjectFence, caps []model.Capability, mtime int64) {
	e.cur.Store(buildSnapshot(fence, caps, mtime))
}

// FenceMtime reports the fence mtime baked into the current snapshot.
func (e *Engine) FenceMtime() int64 { return e.cur.Load().fenceMtime }

// CapDigest reports the capability digest baked into the current snapshot.
func (e *Engine) CapDigest() string { return e.cur.Load().capDigest }

// CanPublish reports whether ae_id may publish subject, given its roles.
func (e *Engine) CanPublish(aeID, subject string, roles []string) bool {
	return e.check(aeID, subject, roles, func(f config.SubjectFence) []string { return f.AllowedPublishers },
		func(c model.Capability) []string { return c.Publishes })
}

// CanSubscribe reports whether ae_id may subscribe subject, given its roles.
func (e *Engine) CanSubscribe(aeID, subject string, roles []string) bool {
	return e.check(aeID, subject, roles, func(f config.SubjectFence) []string { return f.AllowedSubscribers },
		func(c model.Capability) []string { return c.Subscribes })
}

func (e *Engine) check(aeID, subject string, roles []string, allowed func(config.SubjectFence) []string, declared func(model.Capability) []string) bool {
	snap := e.cur.Load()

	fence, ok := snap.fence[subject]
	if !ok {
		return false
	}
	if !matchesAny(allowed(fence), aeID, roles) {
		return false
	}

	cap, ok := snap.capabilities[aeID]
	if !ok {
		return false
	}
	return contains(declared(cap), subject)
}

// SubjectExists reports whether subject is declared in the static fence.
func (e *Engine) SubjectExists(subject string) bool {
	snap := e.cur.Load()
	_, ok := snap.fence[subject]
	return ok
}

// ValidateCapability rejects any publishes/subscribes entry that is
// not declared in the static fence, the pre-check
// routes/capabilities.py performs before persisting a capability.
func (e *Engine) ValidateCapability(cap model.Capability) (unknown []string) {
	snap := e.cur.Load()
	for _, s := range cap.Publishes {
		if _, ok := snap.fence[s]; !ok {
			unknown = append(unknown, s)
		}
	}
	for _, s := range cap.Subscribes {
		if _, ok := snap.fence[s]; !ok {
			unknown = append(unknown, s)
		}
	}
	return unknown
}

func matchesAny(allowed []string, aeID string, roles []string) bool {
	for _, a := range allowed {
		if a == aeID {
			return true
		}
		for _, r := range roles {
			if a == r {
				return true
			}
		}
	}
	return false
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
