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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/abi/model"
	"github.com/sage-x-project/abi/storage"
)

type reflectionStore struct {
	db *pgxpool.Pool
}

func (x *reflectionStore) Append(ctx context.Context, rec model.ReflectionRecord) error {
	transitions, err := json.Marshal(rec.Transitions)
	if err != nil {
		return fmt.Errorf("marshal transitions: %w", err)
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	labels, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	query := `
		INSERT INTO abi_reflection (
			record_id, ts, domain, event_type, intent, subject, source,
			ae_id, session_id, trace_id, confidence, transitions,
			severity, quality, payload, labels
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = x.db.Exec(ctx, query,
		rec.RecordID, rec.TS, rec.Domain, rec.EventType, rec.Intent, rec.Subject, rec.Source,
		rec.Correlation.AEID, rec.Correlation.SessionID, rec.Correlation.TraceID, rec.Correlation.Confidence, transitions,
		rec.Severity, rec.Quality, payload, labels,
	)
	if err != nil {
		return fmt.Errorf("append reflection: %w", err)
	}
	return nil
}

func (x *reflectionStore) All(ctx context.Context) ([]model.ReflectionRecord, error) {
	return x.Query(ctx, storage.Query{})
}

func (x *reflectionStore) Query(ctx context.Context, q storage.Query) ([]model.ReflectionRecord, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.AEID != "" {
		where = append(where, "ae_id = "+arg(q.AEID))
	}
	if q.SessionID != "" {
		where = append(where, "session_id = "+arg(q.SessionID))
	}
	if q.EventType != "" {
		where = append(where, "event_type = "+arg(q.EventType))
	}
	if !q.Since.IsZero() {
		where = append(where, "ts >= "+arg(q.Since))
	}
	if !q.Until.IsZero() {
		where = append(where, "ts <= "+arg(q.Until))
	}

	query := `
		SELECT record_id, ts, domain, event_type, intent, subject, source,
			ae_id, session_id, trace_id, confidence, transitions,
			severity, quality, payload, labels
		FROM abi_reflection
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts ASC, record_id ASC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := x.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reflection: %w", err)
	}
	defer rows.Close()

	var out []model.ReflectionRecord
	for rows.Next() {
		var rec model.ReflectionRecord
		var transitions, payload, labels []byte
		var aeID, sessionID, traceID *string
		var confidence *string
		if err := rows.Scan(
			&rec.RecordID, &rec.TS, &rec.Domain, &rec.EventType, &rec.Intent, &rec.Subject, &rec.Source,
			&aeID, &sessionID, &traceID, &confidence, &transitions,
			&rec.Severity, &rec.Quality, &payload, &labels,
		); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		if aeID != nil {
			rec.Correlation.AEID = *aeID
		}
		if sessionID != nil {
			rec.Correlation.SessionID = *sessionID
		}
		if traceID != nil {
			rec.Correlation.TraceID = *traceID
		}
		if confidence != nil {
			rec.Correlation.Confidence = model.Confidence(*confidence)
		}
		if len(transitions) > 0 {
			_ = json.Unmarshal(transitions, &rec.Transitions)
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &rec.Payload)
		}
		if len(labels) > 0 {
			_ = json.Unmarshal(labels, &rec.Labels)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
