package godesk

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BTAdapter is the shared Bluetooth adapter used for scanning and connecting.
var BTAdapter = bluetooth.DefaultAdapter

var (
	adapterLock    sync.Mutex
	adapterEnabled bool
)

// TryEnableAdapter enables the default Bluetooth adapter if it hasn't been
// enabled yet. Safe to call from every entry point that touches the radio.
func TryEnableAdapter() error {
	adapterLock.Lock()
	defer adapterLock.Unlock()

	if adapterEnabled {
		return nil
	}
	if err := BTAdapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", err)
	}
	adapterEnabled = true
	return nil
}
