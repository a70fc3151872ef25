//go:build js && wasm

// Command reviewsync-wasm is the browser build. It installs the reviewsync
// global and then parks forever; the host page drives it from JavaScript.
package main

import "github.com/clawinfra/reviewsync/internal/webapp"

func main() {
	webapp.Register()
	select {}
}
