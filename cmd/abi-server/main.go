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

// Command abi-server runs the Agent Broker Interface: it loads
// configuration, wires the broker Context, and serves the external HTTP
// contract alongside a standalone Prometheus metrics endpoint, the same
// dual-listener shape internal/metrics.StartServer documents.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sage-x-project/abi/abi"
	"github.com/sage-x-project/abi/config"
	"github.com/sage-x-project/abi/internal/logger"
	"github.com/sage-x-project/abi/internal/metrics"
	transporthttp "github.com/sage-x-project/abi/transport/http"
)

func main() {
	log := logger.GetDefaultLogger().WithFields(logger.String("component", "cmd.abi-server"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", logger.Error(err))
	}

	ctx := context.Background()
	brokerCtx, err := abi.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to wire broker context", logger.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go brokerCtx.Run(runCtx)

	mux := transporthttp.NewMux(brokerCtx)
	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", logger.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", logger.Error(err))
		}
	}()

	go func() {
		log.Info("api server listening", logger.String("addr", cfg.ListenAddr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api server stopped", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	cancel() // stop the policy reloader, runtime sweeper, and session janitor

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown error", logger.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown error", logger.Error(err))
	}
	if err := brokerCtx.Store.Close(); err != nil {
		log.Error("storage close error", logger.Error(err))
	}

	log.Info("shutdown complete")
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
