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

package policy

import (
	"context"
	"time"

	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/internal/logger"
	"github.com/sage-x-project/abi/model"
)

// CapabilitySource supplies the current capability table for reload comparison.
type CapabilitySource interface {
	ListCapabilities(ctx context.Context) ([]model.Capability, error)
}

// Reloader polls the static fence file's mtime and the capability
// table's digest, rebuilding and swapping the Engine's snapshot
// whenever either changes.
type Reloader struct {
	engine   *Engine
	fencePath string
	caps     CapabilitySource
	interval time.Duration
	log      logger.Logger
}

// NewReloader builds a Reloader; interval defaults to 5s if zero.
func NewReloader(engine *Engine, fencePath string, caps CapabilitySource, interval time.Duration) *Reloader {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reloader{
		engine:    engine,
		fencePath: fencePath,
		caps:      caps,
		interval:  interval,
		log:       logger.GetDefaultLogger().WithFields(logger.String("component", "policy.reloader")),
	}
}

// Run polls until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Reloader) poll(ctx context.Context) {
	mtime, err := config.Mtime(r.fencePath)
	if err != nil {
		r.log.Warn("stat policy file failed", logger.Error(err))
		return
	}

	caps, err := r.caps.ListCapabilities(ctx)
	if err != nil {
		r.log.Warn("list capabilities failed", logger.Error(err))
		return
	}
	digest := digestCapabilities(caps)

	if mtime == r.engine.FenceMtime() && digest == r.engine.CapDigest() {
		return
	}

	pf, err := config.LoadPolicyFile(r.fencePath)
	if err != nil {
		r.log.Warn("reload policy file failed", logger.Error(err))
		return
	}

	r.engine.Reload(pf.Subjects, caps, mtime)
	r.log.Info("policy snapshot reloaded", logger.Int("subjects", len(pf.Subjects)), logger.Int("capabilities", len(caps)))
}
