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

package egress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Stream drains sub's queue to w as `data: <json>\n\n` SSE frames,
// interleaving a periodic `: keepalive\n\n` comment frame. It returns
// when ctx is done, the queue closes, or a write fails — the caller is
// responsible for calling sub.Close() once Stream returns so the queue
// is promptly deregistered from the bus (no HTTP framework is vendored;
// this is plain net/http.Flusher framing, the idiom the teacher's own
// unvendored health/metrics endpoints use).
func Stream(ctx context.Context, w io.Writer, flush func(), sub *Subscription, keepalive time.Duration) error {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Queue.C():
			if !ok {
				return nil
			}
			if err := writeFrame(w, msg); err != nil {
				return err
			}
			flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return err
			}
			flush()
		}
	}
}

func writeFrame(w io.Writer, msg map[string]any) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", encoded)
	return err
}
