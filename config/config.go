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

// Package config loads the broker's runtime configuration: JWT signing
// options, storage selection, sweeper thresholds, and the path to the
// static policy fence file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// StorageProvider selects a Storage port implementation.
type StorageProvider string

const (
	StorageMemory   StorageProvider = "memory"
	StoragePostgres StorageProvider = "postgres"
)

// Config is the broker's fully-resolved runtime configuration.
type Config struct {
	Environment string

	JWTSecret    string
	JWTAlgo      string
	JWTTTL       time.Duration
	AdminToken   string

	StaticPolicyFile string

	Storage         StorageProvider
	PostgresDSN     string

	StaleAfter time.Duration
	DeadAfter  time.Duration

	SweepInterval time.Duration

	HeartbeatSSE time.Duration

	ListenAddr  string
	MetricsAddr string
}

// Load reads configuration from the process environment, optionally
// sourced from a .env file (godotenv), applying the same defaults the
// broker documents in its configuration reference.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	cfg := &Config{
		Environment:      GetEnvironment(),
		JWTSecret:        os.Getenv("ABI_JWT_SECRET"),
		JWTAlgo:          getenvDefault("ABI_JWT_ALGO", "HS256"),
		JWTTTL:           durationSeconds(getenvDefault("ABI_JWT_TTL_SECONDS", "300")),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		StaticPolicyFile: getenvDefault("ABI_POLICY_FILE", "config/policy.yaml"),
		Storage:          StorageProvider(getenvDefault("ABI_STORAGE_PROVIDER", string(StorageMemory))),
		PostgresDSN:      os.Getenv("ABI_POSTGRES_DSN"),
		StaleAfter:       durationSeconds(getenvDefault("STALE_AFTER", "30")),
		DeadAfter:        durationSeconds(getenvDefault("DEAD_AFTER", "120")),
		SweepInterval:    durationSeconds(getenvDefault("SWEEP_INTERVAL_SECONDS", "5")),
		HeartbeatSSE:     durationSeconds(getenvDefault("SSE_KEEPALIVE_SECONDS", "12")),
		ListenAddr:       getenvDefault("ABI_LISTEN_ADDR", ":8080"),
		MetricsAddr:      getenvDefault("ABI_METRICS_ADDR", ":9090"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ABI_JWT_SECRET is required")
	}
	if cfg.Storage == StoragePostgres && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("ABI_POSTGRES_DSN is required when ABI_STORAGE_PROVIDER=postgres")
	}
	if cfg.StaleAfter >= cfg.DeadAfter {
		return nil, fmt.Errorf("STALE_AFTER must be less than DEAD_AFTER")
	}

	return cfg, nil
}

func durationSeconds(s string) time.Duration {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
