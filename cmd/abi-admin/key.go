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
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sage-x-project/abi/model"
	"github.com/spf13/cobra"
)

var (
	keyEnrollAEID   string
	keyEnrollPubkey string
	keyEnrollRoles  string
	keyRevokeAEID   string
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage Atomic Expert keyring entries",
}

var keyEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll or update an Atomic Expert's trusted public key",
	Example: `  abi-admin key enroll --ae-id ae-42 --pubkey <base64> --roles producer,consumer`,
	RunE: runKeyEnroll,
}

var keyRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an Atomic Expert's key",
	Example: `  abi-admin key revoke --ae-id ae-42`,
	RunE: runKeyRevoke,
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keyring entries",
	RunE:  runKeyList,
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyEnrollCmd, keyRevokeCmd, keyListCmd)

	keyEnrollCmd.Flags().StringVar(&keyEnrollAEID, "ae-id", "", "Atomic Expert identity (required)")
	keyEnrollCmd.Flags().StringVar(&keyEnrollPubkey, "pubkey", "", "Base64-encoded Ed25519 public key (required)")
	keyEnrollCmd.Flags().StringVar(&keyEnrollRoles, "roles", "", "Comma-separated roles, e.g. producer,consumer")
	keyEnrollCmd.MarkFlagRequired("ae-id")
	keyEnrollCmd.MarkFlagRequired("pubkey")

	keyRevokeCmd.Flags().StringVar(&keyRevokeAEID, "ae-id", "", "Atomic Expert identity (required)")
	keyRevokeCmd.MarkFlagRequired("ae-id")
}

func runKeyEnroll(cmd *cobra.Command, args []string) error {
	pubkey, err := base64.StdEncoding.DecodeString(keyEnrollPubkey)
	if err != nil {
		return fmt.Errorf("decode pubkey: %w", err)
	}

	ctx := context.Background()
	brokerCtx, err := openBroker(ctx)
	if err != nil {
		return err
	}
	defer brokerCtx.Store.Close()

	var roles []string
	if keyEnrollRoles != "" {
		roles = strings.Split(keyEnrollRoles, ",")
	}

	rec, err := brokerCtx.Keyring.AddKey(ctx, keyEnrollAEID, pubkey, roles, model.KeyTrusted)
	if err != nil {
		return fmt.Errorf("enroll key: %w", err)
	}

	fmt.Printf("enrolled %s (fingerprint %s, roles %v)\n", rec.AEID, rec.Fingerprint, rec.Roles)
	return nil
}

func runKeyRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	brokerCtx, err := openBroker(ctx)
	if err != nil {
		return err
	}
	defer brokerCtx.Store.Close()

	if err := brokerCtx.Keyring.Revoke(ctx, keyRevokeAEID); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	fmt.Printf("revoked %s\n", keyRevokeAEID)
	return nil
}

func runKeyList(cmd *cobra.Command, args []string) error {
	brokerCtx, err := openBroker(context.Background())
	if err != nil {
		return err
	}
	defer brokerCtx.Store.Close()

	records := brokerCtx.Keyring.ListKeys()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "AE_ID\tSTATUS\tROLES\tFINGERPRINT\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", r.AEID, r.Status, r.Roles, r.Fingerprint)
	}
	return w.Flush()
}
