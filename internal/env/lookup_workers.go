//go:build js && wasm

package env

import "github.com/syumai/workers/cloudflare"

// Worker bindings replace the process environment.
func lookup(key string) (string, bool) {
	v := cloudflare.Getenv(key)
	return v, v != ""
}
