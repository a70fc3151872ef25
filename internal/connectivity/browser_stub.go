//go:build !(js && wasm)

package connectivity

import (
	"context"
	"errors"
)

// ErrNoBrowser is returned by BrowserSource outside a wasm build.
var ErrNoBrowser = errors.New("connectivity: browser events unavailable")

// BrowserSource is only functional in js/wasm builds.
type BrowserSource struct{}

func (BrowserSource) Name() string { return "browser" }

// BrowserOnline always reports true outside the browser.
func BrowserOnline() bool { return true }

func (BrowserSource) Run(context.Context, func(Event)) error {
	return ErrNoBrowser
}
