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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sage-x-project/abi/storage"
	"github.com/spf13/cobra"
)

var (
	reflectAEID      string
	reflectSession   string
	reflectEventType string
	reflectSince     string
	reflectUntil     string
	reflectLimit     int
	reflectJSON      bool
)

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Query the append-only reflection log",
	Example: `  abi-admin reflect --ae-id ae-42 --event-type emit.accepted --limit 20`,
	RunE: runReflectQuery,
}

func init() {
	rootCmd.AddCommand(reflectCmd)

	reflectCmd.Flags().StringVar(&reflectAEID, "ae-id", "", "Filter by Atomic Expert identity")
	reflectCmd.Flags().StringVar(&reflectSession, "session-id", "", "Filter by session ID")
	reflectCmd.Flags().StringVar(&reflectEventType, "event-type", "", "Filter by event type")
	reflectCmd.Flags().StringVar(&reflectSince, "since", "", "RFC3339 lower bound")
	reflectCmd.Flags().StringVar(&reflectUntil, "until", "", "RFC3339 upper bound")
	reflectCmd.Flags().IntVar(&reflectLimit, "limit", 50, "Maximum records to return")
	reflectCmd.Flags().BoolVar(&reflectJSON, "json", false, "Print raw JSON records instead of a table")
}

func runReflectQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	brokerCtx, err := openBroker(ctx)
	if err != nil {
		return err
	}
	defer brokerCtx.Store.Close()

	q := storage.Query{
		AEID:      reflectAEID,
		SessionID: reflectSession,
		EventType: reflectEventType,
		Limit:     reflectLimit,
	}
	if reflectSince != "" {
		t, err := time.Parse(time.RFC3339, reflectSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		q.Since = t
	}
	if reflectUntil != "" {
		t, err := time.Parse(time.RFC3339, reflectUntil)
		if err != nil {
			return fmt.Errorf("parse --until: %w", err)
		}
		q.Until = t
	}

	records, err := brokerCtx.Reflection.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("query reflection log: %w", err)
	}

	if reflectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TS\tDOMAIN\tEVENT_TYPE\tSUBJECT\tSEVERITY\tSOURCE\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TS.Format(time.RFC3339), r.Domain, r.EventType, r.Subject, r.Severity, r.Source)
	}
	return w.Flush()
}
