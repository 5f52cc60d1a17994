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

// Package ingress is the emit checkpoint: a single Pipeline.Emit call
// running the thirteen ordered stages from bearer presence through
// mesh dispatch and local fan-out. Generalized from
// core/handshake/server.go's staged SendMessage dispatch (resolve ->
// verify signature -> decode -> branch on phase), whose early-return
// per-stage validation becomes the explicit *abierr.Error return every
// checking stage here uses to short-circuit; the side-effect stages
// return nothing, and Emit itself returns (*Result, *abierr.Error).
package ingress

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/sage-x-project/abi/abierr"
	"github.com/sage-x-project/abi/admission"
	"github.com/sage-x-project/abi/bus"
	"github.com/sage-x-project/abi/internal/logger"
	"github.com/sage-x-project/abi/internal/metrics"
	"github.com/sage-x-project/abi/keyring"
	"github.com/sage-x-project/abi/mesh"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/policy"
	"github.com/sage-x-project/abi/reflection"
	"github.com/sage-x-project/abi/runtime"
	"github.com/sage-x-project/abi/session"
	"github.com/sage-x-project/abi/token"
)

// Result is the accepted-receipt shape returned by a successful Emit.
type Result struct {
	Status  string `json:"status"`
	Subject string `json:"subject"`
	TS      int64  `json:"ts"`
}

// Pipeline wires every component the thirteen stages touch.
type Pipeline struct {
	Tokens     *token.Service
	Sessions   *session.Manager
	Keyring    *keyring.Keyring
	Policy     *policy.Engine
	Runtime    *runtime.Registry
	Reflection *reflection.Store
	Mesh       mesh.Publisher
	Bus        *bus.Bus
	now        func() time.Time
	log        logger.Logger
}

// New builds a Pipeline from its components.
func New(tokens *token.Service, sessions *session.Manager, kr *keyring.Keyring, eng *policy.Engine, reg *runtime.Registry, refl *reflection.Store, publisher mesh.Publisher, b *bus.Bus) *Pipeline {
	return &Pipeline{
		Tokens:     tokens,
		Sessions:   sessions,
		Keyring:    kr,
		Policy:     eng,
		Runtime:    reg,
		Reflection: refl,
		Mesh:       publisher,
		Bus:        b,
		now:        time.Now,
		log:        logger.GetDefaultLogger().WithFields(logger.String("component", "ingress")),
	}
}

// state threads decisions between stages without re-deriving them.
type state struct {
	claims   *token.Claims
	envelope model.Envelope
	keyRec   model.KeyRecord
	roles    []string
}

// Emit runs all thirteen stages. Stages 1-8 are pure validation over
// inputs and broker state; the first failure short-circuits with a
// specific *abierr.Error. Stages 9-12 are side effects and must each
// succeed-or-log-and-continue: the returned Result reflects ingress
// acceptance, not downstream delivery.
func (p *Pipeline) Emit(ctx context.Context, bearerHeader string, body []byte) (*Result, *abierr.Error) {
	start := time.Now()
	var st state

	fail := func(aerr *abierr.Error) (*Result, *abierr.Error) {
		metrics.EmitsProcessed.WithLabelValues("rejected").Inc()
		metrics.GetGlobalCollector().RecordEmit(false, time.Since(start))
		p.stageAuditReject(ctx, &st, aerr)
		return nil, aerr
	}

	if aerr := p.stageBearerPresence(bearerHeader, &st); aerr != nil {
		return fail(aerr)
	}
	if aerr := p.stageTokenVerify(bearerHeader, &st); aerr != nil {
		return fail(aerr)
	}
	if aerr := p.stageEnvelopeDecode(body, &st); aerr != nil {
		return fail(aerr)
	}
	if aerr := p.stageProducerMatch(&st); aerr != nil {
		return fail(aerr)
	}
	if aerr := p.stageSessionActive(ctx, &st); aerr != nil {
		return fail(aerr)
	}
	if aerr := p.stageKeyringTrust(&st); aerr != nil {
		return fail(aerr)
	}
	if aerr := p.stagePolicy(&st); aerr != nil {
		metrics.PolicyDenials.WithLabelValues("publish").Inc()
		return fail(aerr)
	}
	if aerr := p.stageSignatureVerify(&st); aerr != nil {
		metrics.SignatureErrors.WithLabelValues("emit").Inc()
		return fail(aerr)
	}

	p.stageHeartbeat(&st)
	p.stageAuditAppend(ctx, &st, "emit_received")
	p.stageMeshDispatch(ctx, &st)
	p.stageLocalFanOut(&st)
	p.stageAuditAppend(ctx, &st, "emit_processed")

	duration := time.Since(start)
	metrics.EmitsProcessed.WithLabelValues("accepted").Inc()
	metrics.EmitProcessingDuration.Observe(duration.Seconds())
	metrics.EnvelopeSize.Observe(float64(len(body)))
	metrics.GetGlobalCollector().RecordEmit(true, duration)

	ts := p.now().Unix()
	return &Result{Status: "accepted", Subject: st.envelope.Subject, TS: ts}, nil
}

// 1. Bearer presence.
func (p *Pipeline) stageBearerPresence(bearerHeader string, st *state) *abierr.Error {
	if len(bearerHeader) < 7 || bearerHeader[:7] != "Bearer " {
		return abierr.New(abierr.Unauthenticated, abierr.ReasonMissingBearer)
	}
	return nil
}

// 2. Token verify.
func (p *Pipeline) stageTokenVerify(bearerHeader string, st *state) *abierr.Error {
	claims, aerr := p.Tokens.VerifyAccessToken(bearerHeader[7:])
	if aerr != nil {
		return aerr
	}
	st.claims = claims
	return nil
}

// 3. Envelope decode.
func (p *Pipeline) stageEnvelopeDecode(body []byte, st *state) *abierr.Error {
	var env model.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return abierr.Wrap(abierr.BadRequest, "envelope_decode_failed", err)
	}
	st.envelope = env
	return nil
}

// 4. Producer identity match.
func (p *Pipeline) stageProducerMatch(st *state) *abierr.Error {
	if st.envelope.Producer != st.claims.Subject {
		return abierr.New(abierr.Forbidden, abierr.ReasonProducerMismatch)
	}
	return nil
}

// 5. Session active.
func (p *Pipeline) stageSessionActive(ctx context.Context, st *state) *abierr.Error {
	_, aerr := p.Sessions.AssertSessionActive(ctx, st.claims.SessionID)
	return aerr
}

// 6. Keyring trust.
func (p *Pipeline) stageKeyringTrust(st *state) *abierr.Error {
	rec, ok := p.Keyring.GetByAEID(st.envelope.Producer)
	if !ok {
		rec, ok = p.Keyring.GetByFingerprint(st.envelope.KeyID)
	}
	if !ok || rec.Status != model.KeyTrusted {
		return abierr.New(abierr.Forbidden, abierr.ReasonNotTrusted)
	}
	st.keyRec = rec
	st.roles = effectiveRoles(rec.Roles, st.claims.Roles)
	return nil
}

// 7. Policy.
func (p *Pipeline) stagePolicy(st *state) *abierr.Error {
	if !p.Policy.CanPublish(st.envelope.Producer, st.envelope.Subject, st.roles) {
		return abierr.New(abierr.Forbidden, abierr.ReasonPolicyDenied)
	}
	return nil
}

// 8. Signature verify.
func (p *Pipeline) stageSignatureVerify(st *state) *abierr.Error {
	signing, err := st.envelope.ToSigningBytes()
	if err != nil {
		return abierr.Wrap(abierr.BadRequest, abierr.ReasonInvalidSignature, err)
	}
	sig, err := admission.DecodeSignature(st.envelope.Sig)
	if err != nil || !ed25519.Verify(ed25519.PublicKey(st.keyRec.PubKey), signing, sig) {
		return abierr.New(abierr.BadRequest, abierr.ReasonInvalidSignature)
	}
	metrics.SignatureOperations.WithLabelValues("verify").Inc()
	return nil
}

// 9. Heartbeat — best-effort, never fatal.
func (p *Pipeline) stageHeartbeat(st *state) {
	p.Runtime.Heartbeat(st.envelope.Producer, st.claims.SessionID, model.SourceEmit, "publish", st.envelope.Subject, "normal", nil)
	if p.Bus != nil {
		p.Bus.Publish(reflection.TopicRuntimeHeartbeat, map[string]any{
			"ae_id":      st.envelope.Producer,
			"session_id": st.claims.SessionID,
			"source":     string(model.SourceEmit),
			"intent":     "publish",
			"subject":    st.envelope.Subject,
			"quality":    "normal",
		})
	}
}

// 10. Audit append — best-effort, never fatal.
func (p *Pipeline) stageAuditAppend(ctx context.Context, st *state, eventType string) {
	if p.Reflection == nil {
		return
	}
	payload := map[string]any{"subject": st.envelope.Subject, "producer": st.envelope.Producer}
	rec := model.ReflectionRecord{
		Domain:    model.DomainAE,
		EventType: eventType,
		Subject:   st.envelope.Subject,
		Intent:    "publish",
		Severity:  model.SeverityInfo,
		Source:    "ingress",
		Correlation: model.Correlation{
			AEID:       st.envelope.Producer,
			SessionID:  st.claims.SessionID,
			Confidence: model.ConfidenceHigh,
		},
		Payload: payload,
	}
	if err := p.Reflection.Append(ctx, rec); err != nil {
		p.log.Error("failed to append audit record", logger.String("event_type", eventType), logger.Error(err))
	}
}

// stageAuditReject writes the audit trail for a rejected emit. It runs
// from every stage's failure path, including the early stages that
// never populate st.claims or st.envelope, so it tolerates zero values
// rather than assuming the later stages ran.
func (p *Pipeline) stageAuditReject(ctx context.Context, st *state, aerr *abierr.Error) {
	if p.Reflection == nil {
		return
	}
	sessionID := ""
	if st.claims != nil {
		sessionID = st.claims.SessionID
	}
	rec := model.ReflectionRecord{
		Domain:    model.DomainAE,
		EventType: rejectEventType(aerr),
		Subject:   st.envelope.Subject,
		Intent:    "publish",
		Severity:  model.SeverityWarn,
		Source:    "ingress",
		Correlation: model.Correlation{
			AEID:       st.envelope.Producer,
			SessionID:  sessionID,
			Confidence: model.ConfidenceHigh,
		},
		Payload: map[string]any{"reason": aerr.Reason},
	}
	if err := p.Reflection.Append(ctx, rec); err != nil {
		p.log.Error("failed to append rejection audit record", logger.String("reason", aerr.Reason), logger.Error(err))
	}
}

// rejectEventType names the audit event for a rejected emit, e.g.
// "emit_blocked_policy" for a policy denial.
func rejectEventType(aerr *abierr.Error) string {
	switch aerr.Reason {
	case abierr.ReasonPolicyDenied:
		return "emit_blocked_policy"
	case abierr.ReasonNotTrusted:
		return "emit_blocked_trust"
	case abierr.ReasonInvalidSignature:
		return "emit_blocked_signature"
	case abierr.ReasonProducerMismatch:
		return "emit_blocked_producer"
	case abierr.ReasonSessionExpired, abierr.ReasonSessionRevoked:
		return "emit_blocked_session"
	case abierr.ReasonMissingBearer, abierr.ReasonInvalidToken, abierr.ReasonTokenExpired:
		return "emit_blocked_auth"
	default:
		return "emit_blocked_" + aerr.Reason
	}
}

// 11. Mesh dispatch — the sole trust-boundary crossing; best-effort.
func (p *Pipeline) stageMeshDispatch(ctx context.Context, st *state) {
	if p.Mesh == nil {
		return
	}
	raw, err := st.envelope.ToBytes()
	if err != nil {
		p.log.Error("failed to serialize envelope for mesh dispatch", logger.Error(err))
		return
	}
	if err := p.Mesh.Publish(ctx, st.envelope.Subject, raw); err != nil {
		p.log.Error("mesh publish failed", logger.String("subject", st.envelope.Subject), logger.Error(err))
	}
}

// 12. Local fan-out — best-effort.
func (p *Pipeline) stageLocalFanOut(st *state) {
	if p.Bus == nil {
		return
	}
	p.Bus.Publish(st.envelope.Subject, envelopeToMessage(st.envelope))
}

func envelopeToMessage(env model.Envelope) map[string]any {
	return map[string]any{
		"producer": env.Producer,
		"subject":  env.Subject,
		"payload":  json.RawMessage(env.Payload),
		"labels":   env.Labels,
		"key_id":   env.KeyID,
		"ts":       env.TS,
	}
}

// effectiveRoles prefers the keyring's declared roles, falling back to
// the token's roles when the keyring has none declared.
func effectiveRoles(keyringRoles, tokenRoles []string) []string {
	if len(keyringRoles) > 0 {
		return keyringRoles
	}
	return tokenRoles
}
