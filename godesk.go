package godesk

import (
	"fmt"
	"log"
	"sync"

	"tinygo.org/x/bluetooth"
)

// Desk is the generic interface for a BLE height-adjustable desk.
// Implementations of this interface handle communication with a specific vendor protocol.
type Desk interface {
	// Connect establishes a connection to the desk and subscribes to its
	// telemetry notifications. Height and moving state are live afterwards.
	Connect() error

	// Disconnect tears down notification subscriptions (best effort) and
	// drops the connection.
	Disconnect() error

	// DeviceName returns the advertised name of this desk.
	DeviceName() string

	// DisplayName returns a human-friendly model name.
	DisplayName() string

	// Address returns the BLE address the desk was discovered at.
	Address() string

	// Height returns the most recently observed height in inches.
	Height() float64

	// Moving reports whether the desk is currently judged to be in motion.
	Moving() bool

	// MoveToStanding drives the desk to its stored standing preset.
	MoveToStanding() error

	// MoveToSitting drives the desk to its stored sitting preset.
	MoveToSitting() error

	// PressRaise emulates a tap of the raise button on the keypad.
	PressRaise() error

	// PressLower emulates a tap of the lower button on the keypad.
	PressLower() error

	// ReadHeight polls the desk for its current height, independent of the
	// notification stream, and returns the value in inches.
	ReadHeight() (float64, error)

	// ReadDeviceName reads the device name characteristic from the desk.
	ReadDeviceName() (string, error)

	// Rename writes a new device name to the desk. The desk acknowledges
	// asynchronously via EventNameAcknowledged.
	Rename(name string) error

	// Subscribe registers an observer for an event kind and returns a token
	// for later removal. Observers run sequentially in registration order.
	Subscribe(kind EventKind, fn Observer) Token

	// Unsubscribe removes a previously registered observer. Unknown tokens
	// are ignored.
	Unsubscribe(kind EventKind, token Token)
}

// --- Implementation Registry ---

// Factory is a function that creates a new instance of a Desk.
type Factory func(*FoundDevice) Desk

// FoundDevice describes a desk located during a scan.
type FoundDevice struct {
	Name    string
	Address bluetooth.Address
	RSSI    int16
	// Service is the advertised vendor discovery service that matched a
	// registered implementation.
	Service bluetooth.UUID
}

var (
	registry = make(map[bluetooth.UUID]Factory)
	regLock  = sync.RWMutex{}
)

// Register makes a desk implementation available by its vendor discovery
// service UUID. This function should be called from the init() function of
// the implementation's package.
func Register(service bluetooth.UUID, factory Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	if _, found := registry[service]; found {
		log.Printf("warning: desk implementation for service %s is being overwritten", service.String())
	}
	registry[service] = factory
}

// NewDeskForDevice finds a registered factory for the given device and
// creates a new Desk instance. It matches on the discovery service recorded
// at scan time.
func NewDeskForDevice(device *FoundDevice) (Desk, error) {
	regLock.RLock()
	defer regLock.RUnlock()

	if factory, ok := registry[device.Service]; ok {
		return factory(device), nil
	}

	return nil, fmt.Errorf("no implementation found for device '%s'", device.Name)
}
