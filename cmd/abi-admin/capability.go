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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sage-x-project/abi/model"
	"github.com/spf13/cobra"
)

var (
	capAEID       string
	capPublishes  string
	capSubscribes string
)

var capabilityCmd = &cobra.Command{
	Use:   "capability",
	Short: "Manage Atomic Expert publish/subscribe capabilities",
}

var capabilitySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set an Atomic Expert's declared capabilities",
	Example: `  abi-admin capability set --ae-id ae-42 --publishes fused.track --subscribes alerts.raised`,
	RunE: runCapabilitySet,
}

var capabilityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all declared capabilities",
	RunE:  runCapabilityList,
}

func init() {
	rootCmd.AddCommand(capabilityCmd)
	capabilityCmd.AddCommand(capabilitySetCmd, capabilityListCmd)

	capabilitySetCmd.Flags().StringVar(&capAEID, "ae-id", "", "Atomic Expert identity (required)")
	capabilitySetCmd.Flags().StringVar(&capPublishes, "publishes", "", "Comma-separated subjects this AE may publish")
	capabilitySetCmd.Flags().StringVar(&capSubscribes, "subscribes", "", "Comma-separated subjects this AE may subscribe to")
	capabilitySetCmd.MarkFlagRequired("ae-id")
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func runCapabilitySet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	brokerCtx, err := openBroker(ctx)
	if err != nil {
		return err
	}
	defer brokerCtx.Store.Close()

	cap := model.Capability{
		AEID:       capAEID,
		Publishes:  splitNonEmpty(capPublishes),
		Subscribes: splitNonEmpty(capSubscribes),
		UpdatedAt:  time.Now(),
	}
	if err := brokerCtx.Store.CapabilityStore().UpsertCapability(ctx, cap); err != nil {
		return fmt.Errorf("upsert capability: %w", err)
	}

	fmt.Printf("capability set for %s: publishes=%v subscribes=%v\n", cap.AEID, cap.Publishes, cap.Subscribes)
	fmt.Println("note: the running abi-server picks this up on its next policy reload tick")
	return nil
}

func runCapabilityList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	brokerCtx, err := openBroker(ctx)
	if err != nil {
		return err
	}
	defer brokerCtx.Store.Close()

	caps, err := brokerCtx.Store.CapabilityStore().ListCapabilities(ctx)
	if err != nil {
		return fmt.Errorf("list capabilities: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "AE_ID\tPUBLISHES\tSUBSCRIBES\tUPDATED_AT\n")
	for _, c := range caps {
		fmt.Fprintf(w, "%s\t%v\t%v\t%s\n", c.AEID, c.Publishes, c.Subscribes, c.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
