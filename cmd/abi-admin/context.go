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

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/config"
)

// openBroker loads configuration the same way abi-server does and wires a
// full abi.Context against it, so every subcommand here reads and writes
// the exact storage backend the broker process runs against.
func openBroker(ctx context.Context) (*abi.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	brokerCtx, err := abi.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("wire broker context: %w", err)
	}
	return brokerCtx, nil
}
