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

// Package mesh is the broker's sole trust-boundary crossing: publishing
// an accepted envelope onto the downstream messaging mesh. Generalized
// from pkg/agent/transport.MessageTransport, which keeps SAGE's security
// layer independent of gRPC/HTTP/WebSocket wire protocols the same way
// Publisher keeps the ingress pipeline independent of whichever broker
// (NATS, Kafka, an HTTP sink) actually carries traffic downstream.
package mesh

import "context"

// Publisher is the injected mesh transport port. Implementations decide
// how subject/payload reach the downstream mesh; the ingress pipeline
// only ever calls Publish.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// NopPublisher discards everything; useful for tests and for running
// the broker with local fan-out only, no mesh configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	return nil
}

// RecordingPublisher captures every publish call, the way
// pkg/agent/transport.MockTransport captures SentMessages for test
// assertions.
type RecordingPublisher struct {
	Published []Publication
	Err       error
}

// Publication is one captured Publish call.
type Publication struct {
	Subject string
	Payload []byte
}

func (p *RecordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	if p.Err != nil {
		return p.Err
	}
	p.Published = append(p.Published, Publication{Subject: subject, Payload: payload})
	return nil
}
