// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package client provides the HTTP fetch capability used to load documents and
// to call upstream APIs.
package client

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HttpClient defines a standard interface for an HTTP client. This interface is
// compatible with *http.Client.
type HttpClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	//
	// req is the HTTP request to send.
	Do(req *http.Request) (*http.Response, error)
}

// HttpClientFunc adapts a function to HttpClient.
type HttpClientFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f HttpClientFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

const defaultMaxIdleConns = 32

// NewHTTPClient returns an *http.Client whose transport is instrumented with
// OpenTelemetry. Per-request deadlines come from the request context, so the
// client itself has no timeout.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConns,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}),
	}
}
