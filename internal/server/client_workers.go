//go:build js && wasm

package server

import "net/http"

// NewHTTPClient returns a client backed by the Workers fetch API.
func NewHTTPClient() HTTPClient {
	return &http.Client{}
}
