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

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthCheckerRegisterAndCheck(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	hc.RegisterCheck("ok", func(ctx context.Context) error { return nil })

	result, err := hc.Check(context.Background(), "ok")
	require.NoError(t, err)
	require.Equal(t, StatusHealthy, result.Status)
}

func TestHealthCheckerUnknownCheck(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	_, err := hc.Check(context.Background(), "missing")
	require.Error(t, err)
}

func TestHealthCheckerCheckAllAggregatesStatus(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	hc.RegisterCheck("ok", func(ctx context.Context) error { return nil })
	hc.RegisterCheck("bad", func(ctx context.Context) error { return errors.New("dial failed") })

	results := hc.CheckAll(context.Background())
	require.Len(t, results, 2)
	require.Equal(t, StatusHealthy, results["ok"].Status)
	require.Equal(t, StatusUnhealthy, results["bad"].Status)

	require.Equal(t, StatusUnhealthy, hc.GetOverallStatus(context.Background()))
}

func TestHealthCheckerNoChecksIsHealthy(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	require.Equal(t, StatusHealthy, hc.GetOverallStatus(context.Background()))
}

func TestHealthCheckerCachesResults(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	hc.SetCacheTTL(time.Minute)

	calls := 0
	hc.RegisterCheck("counted", func(ctx context.Context) error {
		calls++
		return nil
	})

	_, err := hc.Check(context.Background(), "counted")
	require.NoError(t, err)
	_, err = hc.Check(context.Background(), "counted")
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	hc.ClearCache()
	_, err = hc.Check(context.Background(), "counted")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestStorageHealthCheck(t *testing.T) {
	check := StorageHealthCheck(func(ctx context.Context) error { return nil })
	require.NoError(t, check(context.Background()))

	check = StorageHealthCheck(nil)
	require.Error(t, check(context.Background()))

	check = StorageHealthCheck(func(ctx context.Context) error { return errors.New("connection refused") })
	require.Error(t, check(context.Background()))
}

func TestPolicyFenceHealthCheckMissingFileIsHealthy(t *testing.T) {
	check := PolicyFenceHealthCheck(
		func() int64 { return 0 },
		func() (int64, error) { return 0, errors.New("no such file") },
		time.Minute,
	)
	require.NoError(t, check(context.Background()))
}

func TestPolicyFenceHealthCheckStalePendingReload(t *testing.T) {
	check := PolicyFenceHealthCheck(
		func() int64 { return 100 },
		func() (int64, error) { return 200, nil },
		time.Minute,
	)
	require.Error(t, check(context.Background()))
}

func TestPolicyFenceHealthCheckUpToDate(t *testing.T) {
	check := PolicyFenceHealthCheck(
		func() int64 { return 200 },
		func() (int64, error) { return 100, nil },
		time.Minute,
	)
	require.NoError(t, check(context.Background()))
}
