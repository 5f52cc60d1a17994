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

package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sage-x-project/abi/internal/logger"
	"github.com/sage-x-project/abi/storage"
)

// Janitor runs a cron-scheduled sweep that purges expired sessions from
// storage, the housekeeping counterpart to runtime.Sweeper's liveness
// demotion: a session can go stale/dead in the runtime registry long
// before its storage row is worth deleting.
type Janitor struct {
	store storage.SessionStore
	cron  *cron.Cron
	log   logger.Logger
}

// NewJanitor builds a Janitor that runs on spec, a standard cron
// expression (seconds optional, e.g. "@every 1m" or "0 */5 * * * *").
func NewJanitor(store storage.SessionStore, spec string) (*Janitor, error) {
	j := &Janitor{
		store: store,
		cron:  cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		log:   logger.GetDefaultLogger().WithFields(logger.String("component", "session.janitor")),
	}
	if _, err := j.cron.AddFunc(spec, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Run starts the cron scheduler and blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep() {
	n, err := j.store.DeleteExpiredSessions(context.Background(), time.Now())
	if err != nil {
		j.log.Warn("expired session sweep failed", logger.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("purged expired sessions", logger.Int("count", int(n)))
	}
}
