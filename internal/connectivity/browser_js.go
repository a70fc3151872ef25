//go:build js && wasm

package connectivity

import (
	"context"
	"syscall/js"
)

// BrowserSource listens to the window's online/offline events, page
// visibility and focus.
type BrowserSource struct{}

func (BrowserSource) Name() string { return "browser" }

// BrowserOnline returns navigator.onLine.
func BrowserOnline() bool {
	nav := js.Global().Get("navigator")
	if nav.IsUndefined() {
		return true
	}
	return nav.Get("onLine").Bool()
}

// Run registers listeners and removes them when ctx is done.
func (BrowserSource) Run(ctx context.Context, emit func(Event)) error {
	window := js.Global()
	document := window.Get("document")

	type binding struct {
		target js.Value
		name   string
		fn     js.Func
	}
	bind := func(target js.Value, name string, handle func()) binding {
		fn := js.FuncOf(func(js.Value, []js.Value) any {
			handle()
			return nil
		})
		target.Call("addEventListener", name, fn)
		return binding{target: target, name: name, fn: fn}
	}

	bindings := []binding{
		bind(window, "online", func() { emit(Event{Signal: SignalOnline}) }),
		bind(window, "offline", func() { emit(Event{Signal: SignalOffline}) }),
		bind(window, "focus", func() { emit(Event{Signal: SignalFocus, ReportedOnline: BrowserOnline()}) }),
		bind(document, "visibilitychange", func() {
			if document.Get("visibilityState").String() == "visible" {
				emit(Event{Signal: SignalVisible, ReportedOnline: BrowserOnline()})
			}
		}),
	}

	<-ctx.Done()
	for _, b := range bindings {
		b.target.Call("removeEventListener", b.name, b.fn)
		b.fn.Release()
	}
	return nil
}
