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

// Package abi is the broker's one-way dependency container: Context
// wires storage through every subsystem manager and is constructed
// once, in cmd/abi-server/main.go, then threaded explicitly into every
// transport/http handler. Nothing here is a package-level global; the
// teacher's own precedent for ambient process-wide state is
// internal/metrics' prometheus registry, which this repo treats as the
// one legitimate exception.
package abi

import (
	"context"
	"fmt"
	"time"

	"github.com/sage-x-project/abi/admission"
	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/egress"
	"github.com/sage-x-project/abi/health"
	"github.com/sage-x-project/abi/ingress"
	"github.com/sage-x-project/abi/internal/metrics"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/mesh"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/policy"
	"github.com/sage-x-project/abi/reflection"
	"github.com/sage-x-project/abi/runtime"
	"github.com/sage-x-project/abi/session"
	"github.com/sage-x-project/abi/storage"
	"github.com/sage-x-project/abi/storage/memory"
	"github.com/sage-x-project/abi/storage/postgres"
	"github.com/sage-x-project/abi/token"
)

// Context is every wired component the broker's handlers and background
// tasks depend on.
type Context struct {
	Config *config.Config

	Store      storage.Store
	Keyring    *keyring.Keyring
	Policy     *policy.Engine
	Sessions   *session.Manager
	Admission  *admission.Service
	Tokens     *token.Service
	Runtime    *runtime.Registry
	Reflection *reflection.Store
	Bus        *bus.Bus
	Mesh       mesh.Publisher

	Ingress *ingress.Pipeline
	Egress  *egress.Service

	Health *health.HealthChecker

	Reloader *policy.Reloader
	Sweeper  *runtime.Sweeper
	Janitor  *session.Janitor
}

// New builds a fully-wired Context from cfg. The storage backend is
// selected by cfg.Storage; every other component is constructed in
// dependency order (storage -> keyring/policy -> session/admission/token
// -> runtime/reflection/bus -> ingress/egress).
func New(ctx context.Context, cfg *config.Config) (*Context, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	kr, err := keyring.New(store.KeyStore())
	if err != nil {
		return nil, fmt.Errorf("load keyring: %w", err)
	}

	fence, err := loadFence(cfg.StaticPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy fence: %w", err)
	}
	caps, err := store.CapabilityStore().ListCapabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capabilities: %w", err)
	}
	mtime, _ := config.Mtime(cfg.StaticPolicyFile)
	eng := policy.NewEngine(fence, caps)
	eng.Reload(fence, caps, mtime)

	sessions := session.NewManager(store.SessionStore(), store.RefreshStore())
	adm := admission.New(kr)
	tokens := token.New([]byte(cfg.JWTSecret), cfg.JWTTTL)
	refl := reflection.New(store.ReflectionStore())
	b := bus.New()

	reflSink := reflection.NewSink(refl)
	reflSink.Attach(b)

	reg := runtime.New(cfg.StaleAfter, cfg.DeadAfter, transitionHook(b))

	var publisher mesh.Publisher = mesh.NopPublisher{}

	pipeline := ingress.New(tokens, sessions, kr, eng, reg, refl, publisher, b)
	egressSvc := egress.New(tokens, kr, eng, reg, b)

	reloader := policy.NewReloader(eng, cfg.StaticPolicyFile, capabilitySource{store}, cfg.SweepInterval)
	sweeper := runtime.NewSweeper(reg, cfg.SweepInterval)

	hc := health.NewHealthChecker(5 * time.Second)
	hc.RegisterCheck("storage", health.StorageHealthCheck(store.Ping))
	hc.RegisterCheck("policy_fence", health.PolicyFenceHealthCheck(eng.FenceMtime, func() (int64, error) {
		return config.Mtime(cfg.StaticPolicyFile)
	}, cfg.SweepInterval))

	janitor, err := session.NewJanitor(store.SessionStore(), "@every 1m")
	if err != nil {
		return nil, fmt.Errorf("build session janitor: %w", err)
	}

	return &Context{
		Config:     cfg,
		Store:      store,
		Keyring:    kr,
		Policy:     eng,
		Sessions:   sessions,
		Admission:  adm,
		Tokens:     tokens,
		Runtime:    reg,
		Reflection: refl,
		Bus:        b,
		Mesh:       publisher,
		Ingress:    pipeline,
		Egress:     egressSvc,
		Health:     hc,
		Reloader:   reloader,
		Sweeper:    sweeper,
		Janitor:    janitor,
	}, nil
}

// Run starts every background task (policy reloader, runtime sweeper,
// session janitor) and blocks until ctx is cancelled.
func (c *Context) Run(ctx context.Context) {
	go c.Reloader.Run(ctx)
	go c.Sweeper.Run(ctx)
	go c.Janitor.Run(ctx)
	<-ctx.Done()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return memory.NewStore(), nil
	}
}

func loadFence(path string) (map[string]config.SubjectFence, error) {
	pf, err := config.LoadPolicyFile(path)
	if err != nil {
		return map[string]config.SubjectFence{}, nil
	}
	return pf.Subjects, nil
}

// transitionHook publishes every runtime transition onto the bus so the
// reflection sink (subscribed to TopicRuntimeTransition) can record it.
func transitionHook(b *bus.Bus) runtime.TransitionHook {
	return func(rec model.RuntimeRecord, from, to model.RuntimeState, reason string) {
		metrics.GetGlobalCollector().RecordRuntimeTransition()
		b.Publish(reflection.TopicRuntimeTransition, map[string]any{
			"ae_id":      rec.AEID,
			"session_id": rec.SessionID,
			"from":       string(from),
			"to":         string(to),
			"reason":     reason,
		})
	}
}

// capabilitySource adapts storage.Store to policy.CapabilitySource.
type capabilitySource struct{ store storage.Store }

func (c capabilitySource) ListCapabilities(ctx context.Context) ([]model.Capability, error) {
	return c.store.CapabilityStore().ListCapabilities(ctx)
}
