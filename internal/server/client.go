//go:build !js || !wasm

package server

import (
	"net/http"
	"time"
)

// NewHTTPClient creates a new HTTP client for regular environments. Only the
// wait for response headers is bounded; stream bodies may run longer.
func NewHTTPClient() HTTPClient {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   8,
		},
	}
}
