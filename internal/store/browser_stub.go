//go:build !(js && wasm)

package store

// BrowserSlot is only functional in js/wasm builds.
type BrowserSlot struct{}

// NewBrowserSlot always fails outside a browser.
func NewBrowserSlot() (*BrowserSlot, error) {
	return nil, ErrNoBrowser
}

// Get implements Slot.
func (b *BrowserSlot) Get(string) (string, bool, error) { return "", false, ErrNoBrowser }

// Set implements Slot.
func (b *BrowserSlot) Set(string, string) error { return ErrNoBrowser }

// Remove implements Slot.
func (b *BrowserSlot) Remove(string) error { return ErrNoBrowser }
