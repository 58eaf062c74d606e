// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package metrics records invocation counters and latencies and exposes them
// in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName prefixes every metric.
const ServiceName = "openapi_bridge"

// Metric names emitted by the invoker.
var (
	InvokeSuccess = []string{"invoke", "success"}
	InvokeError   = []string{"invoke", "error"}
	InvokeRetry   = []string{"invoke", "retry"}
	InvokeLatency = []string{"invoke", "latency"}
)

var (
	initOnce sync.Once
	initErr  error
)

// Initialize prepares the metrics system with a Prometheus sink. Later calls
// return the result of the first one.
func Initialize() error {
	initOnce.Do(func() {
		sink, err := prometheus.NewPrometheusSink()
		if err != nil {
			initErr = err
			return
		}

		conf := metrics.DefaultConfig(ServiceName)
		conf.EnableHostname = false
		conf.EnableRuntimeMetrics = false

		if _, err := metrics.NewGlobal(conf, sink); err != nil {
			initErr = err
		}
	})
	return initErr
}

// handler serves the /metrics endpoint.
func handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func toolLabels(tool string) []metrics.Label {
	return []metrics.Label{{Name: "tool", Value: tool}}
}

// IncrToolCounter increments a counter labelled with a tool name.
func IncrToolCounter(name []string, tool string) {
	metrics.IncrCounterWithLabels(name, 1, toolLabels(tool))
}

// MeasureToolSince records the time since start for a tool.
func MeasureToolSince(name []string, tool string, start time.Time) {
	metrics.MeasureSinceWithLabels(name, start, toolLabels(tool))
}
