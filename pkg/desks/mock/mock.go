// Package mock provides a simulated implementation of the godesk.Desk
// interface. It is intended for development and testing purposes when a
// physical desk is not available.
package mock

import (
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/upliftdesk/godesk"
	"github.com/upliftdesk/godesk/pkg/desks/uplift/comms"
)

// ServiceUUID is the fake discovery service the mock registers under, so it
// can be requested through the ordinary factory path.
var ServiceUUID = bluetooth.New16BitUUID(0xFDFF)

// This init function registers the MockDesk with the central registry.
// To use it, you must explicitly import this package.
func init() {
	godesk.Register(ServiceUUID, New)
}

// This line is the compile-time check. It will fail to compile if
// *MockDesk ever stops satisfying the godesk.Desk interface.
var _ godesk.Desk = (*MockDesk)(nil)

const (
	sittingHeight  = 28.5
	standingHeight = 42.0
	nudgeInches    = 0.5
	travelPerTick  = 0.4
	tickInterval   = 250 * time.Millisecond
)

// MockDesk is a simulated height-adjustable desk for development.
type MockDesk struct {
	mu        sync.Mutex
	name      string
	connected bool
	height    float64
	target    float64

	observers *godesk.Registry
	stopChan  chan struct{}
}

// New creates a new, disconnected MockDesk starting at sitting height.
func New(device *godesk.FoundDevice) godesk.Desk {
	name := device.Name
	if name == "" {
		name = "MOCK-DESK"
	}
	return &MockDesk{
		name:      name,
		height:    sittingHeight,
		target:    sittingHeight,
		observers: godesk.NewRegistry(),
	}
}

func (m *MockDesk) DeviceName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *MockDesk) DisplayName() string {
	return "Mock desk"
}

func (m *MockDesk) Address() string {
	return "00:00:00:00:00:00"
}

func (m *MockDesk) Height() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

func (m *MockDesk) Moving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height != m.target
}

// Connect starts the simulation.
func (m *MockDesk) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("mock desk is already connected")
	}

	log.Println("MOCK: Connecting...")
	m.connected = true
	m.stopChan = make(chan struct{})

	go m.simulate(m.stopChan)

	log.Println("MOCK: Connected successfully.")
	return nil
}

// Disconnect stops the simulation.
func (m *MockDesk) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil // Nothing to do
	}

	log.Println("MOCK: Disconnecting...")
	close(m.stopChan)
	m.stopChan = nil
	m.connected = false
	return nil
}

// simulate is the core loop that moves the desk toward its target and emits
// height events the way a real desk streams notifications.
func (m *MockDesk) simulate(stop <-chan struct{}) {
	defer log.Println("MOCK: Simulation stopped.")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			switch {
			case m.height < m.target:
				m.height = min(m.height+travelPerTick, m.target)
			case m.height > m.target:
				m.height = max(m.height-travelPerTick, m.target)
			}
			state := m.stateLocked()
			m.mu.Unlock()

			m.observers.Dispatch(godesk.EventHeightChanged, state)

		case <-stop:
			return
		}
	}
}

func (m *MockDesk) MoveToStanding() error {
	return m.setTarget(standingHeight)
}

func (m *MockDesk) MoveToSitting() error {
	return m.setTarget(sittingHeight)
}

func (m *MockDesk) PressRaise() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock desk is not connected")
	}
	m.target += nudgeInches
	return nil
}

func (m *MockDesk) PressLower() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock desk is not connected")
	}
	m.target -= nudgeInches
	return nil
}

func (m *MockDesk) ReadHeight() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, fmt.Errorf("mock desk is not connected")
	}
	return m.height, nil
}

func (m *MockDesk) ReadDeviceName() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", fmt.Errorf("mock desk is not connected")
	}
	return m.name, nil
}

// Rename validates the name with the real codec and acknowledges
// immediately, the way desk firmware acks over the name characteristic.
func (m *MockDesk) Rename(name string) error {
	if _, err := comms.EncodeRename(name); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return fmt.Errorf("mock desk is not connected")
	}
	m.name = name
	state := m.stateLocked()
	m.mu.Unlock()

	log.Printf("MOCK: Renamed to %q.", name)
	m.observers.Dispatch(godesk.EventNameAcknowledged, state)
	return nil
}

func (m *MockDesk) Subscribe(kind godesk.EventKind, fn godesk.Observer) godesk.Token {
	return m.observers.Subscribe(kind, fn)
}

func (m *MockDesk) Unsubscribe(kind godesk.EventKind, token godesk.Token) {
	m.observers.Unsubscribe(kind, token)
}

func (m *MockDesk) setTarget(target float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock desk is not connected")
	}
	m.target = target
	return nil
}

func (m *MockDesk) stateLocked() godesk.State {
	return godesk.State{
		Address: "00:00:00:00:00:00",
		Name:    m.name,
		Height:  m.height,
		Moving:  m.height != m.target,
	}
}
