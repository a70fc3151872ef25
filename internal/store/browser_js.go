//go:build js && wasm

package store

import (
	"fmt"
	"syscall/js"
)

// BrowserSlot stores values in window.localStorage.
type BrowserSlot struct {
	storage js.Value
}

// NewBrowserSlot binds to the page's localStorage.
func NewBrowserSlot() (*BrowserSlot, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return nil, ErrNoBrowser
	}
	return &BrowserSlot{storage: ls}, nil
}

// Get implements Slot.
func (b *BrowserSlot) Get(key string) (v string, ok bool, err error) {
	defer recoverJS(&err)
	item := b.storage.Call("getItem", key)
	if item.IsNull() || item.IsUndefined() {
		return "", false, nil
	}
	return item.String(), true, nil
}

// Set implements Slot. Quota errors surface as a returned error.
func (b *BrowserSlot) Set(key, value string) (err error) {
	defer recoverJS(&err)
	b.storage.Call("setItem", key, value)
	return nil
}

// Remove implements Slot.
func (b *BrowserSlot) Remove(key string) (err error) {
	defer recoverJS(&err)
	b.storage.Call("removeItem", key)
	return nil
}

// recoverJS converts a thrown JS exception into an error.
func recoverJS(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("store: localStorage: %v", r)
	}
}
