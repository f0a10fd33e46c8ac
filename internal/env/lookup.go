//go:build !(js && wasm)

package env

import "os"

func lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
