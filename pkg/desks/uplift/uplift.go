// Package uplift drives Uplift height-adjustable desks over their vendor
// BLE protocol.
package uplift

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/upliftdesk/godesk"
	"github.com/upliftdesk/godesk/pkg/desks/uplift/comms"
	"github.com/upliftdesk/godesk/pkg/desks/uplift/motion"
)

func init() {
	godesk.Register(comms.DiscoveryServiceUUID, New)
}

// This line is the compile-time check. It will fail to compile if
// *Desk ever stops satisfying the godesk.Desk interface.
var _ godesk.Desk = (*Desk)(nil)

// ErrNoTransport is returned when an operation that needs a connection is
// attempted before Connect (or after the transport is gone). That is a
// programmer error; it never silently no-ops.
var ErrNoTransport = errors.New("no transport bound; desk is not connected")

// Desk is a controller for one physical Uplift desk. All command writes are
// preceded by a wake frame: the desk drops into a low-power state after
// roughly ten seconds of inactivity and ignores anything else while asleep.
type Desk struct {
	name    string
	address bluetooth.Address
	convert comms.HeightConverter

	mu         sync.Mutex
	transport  Transport
	detector   *motion.Detector
	height     float64
	moving     bool
	lastAction time.Time

	observers *godesk.Registry

	btDevice  bluetooth.Device
	connected bool
}

// New creates a Desk for a discovered device using the stock firmware height
// conversion.
func New(device *godesk.FoundDevice) godesk.Desk {
	return NewWithConverter(device, comms.ConvertRawHeight)
}

// NewWithConverter creates a Desk with a custom height conversion, for desks
// whose firmware reports height in a different byte layout.
func NewWithConverter(device *godesk.FoundDevice, convert comms.HeightConverter) *Desk {
	return &Desk{
		name:      device.Name,
		address:   device.Address,
		convert:   convert,
		detector:  motion.NewDetector(),
		observers: godesk.NewRegistry(),
	}
}

func (d *Desk) DeviceName() string {
	return d.name
}

func (d *Desk) DisplayName() string {
	return "Uplift desk"
}

func (d *Desk) Address() string {
	return d.address.String()
}

// Height returns the most recently observed height in inches.
func (d *Desk) Height() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.height
}

// Moving reports the debounced motion verdict.
func (d *Desk) Moving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.moving
}

// Connect connects to the desk, discovers its characteristics, and
// subscribes to height and name notifications.
func (d *Desk) Connect() error {
	if err := godesk.TryEnableAdapter(); err != nil {
		return err
	}

	var err error
	d.btDevice, err = godesk.BTAdapter.Connect(d.address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect to desk: %w", err)
	}

	transport, err := newGATTTransport(d.btDevice)
	if err != nil {
		_ = d.btDevice.Disconnect()
		return err
	}

	log.Println("setting up notifications")

	if err := transport.SubscribeNotifications(comms.DeskHeightCharUUID, d.handleHeightNotification); err != nil {
		_ = d.btDevice.Disconnect()
		return fmt.Errorf("failed to enable height notifications: %w", err)
	}

	// The name characteristic is not present on every firmware; rename acks
	// just won't fire without it.
	if err := transport.SubscribeNotifications(comms.DeskNameCharUUID, d.handleNameNotification); err != nil {
		log.Printf("desk name notifications unavailable: %v", err)
	}

	d.mu.Lock()
	d.transport = transport
	d.connected = true
	d.mu.Unlock()

	return nil
}

// Disconnect unsubscribes from notifications and drops the connection.
// Unsubscription is best effort: failing to tear down a subscription on a
// device that is already gone is not actionable.
func (d *Desk) Disconnect() error {
	d.mu.Lock()
	transport := d.transport
	d.transport = nil
	connected := d.connected
	d.connected = false
	d.mu.Unlock()

	if transport == nil {
		return ErrNoTransport
	}

	if err := transport.UnsubscribeNotifications(comms.DeskHeightCharUUID); err != nil {
		log.Printf("ignoring unsubscribe failure: %v", err)
	}
	if err := transport.UnsubscribeNotifications(comms.DeskNameCharUUID); err != nil {
		log.Printf("ignoring unsubscribe failure: %v", err)
	}

	if connected {
		return d.btDevice.Disconnect()
	}
	return nil
}

func (d *Desk) MoveToStanding() error {
	return d.sendCommand(comms.CommandPresetStand)
}

func (d *Desk) MoveToSitting() error {
	return d.sendCommand(comms.CommandPresetSit)
}

func (d *Desk) PressRaise() error {
	return d.sendCommand(comms.CommandPressRaise)
}

func (d *Desk) PressLower() error {
	return d.sendCommand(comms.CommandPressLower)
}

// Wake nudges the desk out of its low-power state without doing anything
// else. Every other command already wakes the desk first.
func (d *Desk) Wake() error {
	return d.sendCommand(comms.CommandWake)
}

// ReadHeight polls the desk: it requests a status publish, reads the height
// characteristic directly, and updates the session state with the result.
func (d *Desk) ReadHeight() (float64, error) {
	if err := d.sendCommand(comms.CommandRequestStatus); err != nil {
		return 0, err
	}

	d.mu.Lock()
	transport := d.transport
	d.mu.Unlock()
	if transport == nil {
		return 0, ErrNoTransport
	}

	raw, err := transport.ReadCharacteristic(comms.DeskHeightCharUUID)
	if err != nil {
		return 0, err
	}

	sample, err := comms.DecodeHeight(d.convert, raw, time.Now())
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.height = sample.Inches
	d.mu.Unlock()

	return sample.Inches, nil
}

// ReadDeviceName reads the standard device name characteristic.
func (d *Desk) ReadDeviceName() (string, error) {
	d.mu.Lock()
	transport := d.transport
	d.mu.Unlock()
	if transport == nil {
		return "", ErrNoTransport
	}

	raw, err := transport.ReadCharacteristic(comms.DeviceNameCharUUID)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Rename validates and writes a new desk name. The desk acknowledges the
// write asynchronously over the name characteristic, which surfaces as an
// EventNameAcknowledged dispatch.
func (d *Desk) Rename(name string) error {
	packet, err := comms.EncodeRename(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	transport := d.transport
	if transport == nil {
		d.mu.Unlock()
		return ErrNoTransport
	}
	d.lastAction = time.Now()
	d.mu.Unlock()

	log.Printf("Setting desk name: %s", name)
	return transport.WriteCharacteristic(comms.DeskNameCharUUID, packet)
}

func (d *Desk) Subscribe(kind godesk.EventKind, fn godesk.Observer) godesk.Token {
	return d.observers.Subscribe(kind, fn)
}

func (d *Desk) Unsubscribe(kind godesk.EventKind, token godesk.Token) {
	d.observers.Unsubscribe(kind, token)
}

// sendCommand writes a control frame, preceded by a wake frame for anything
// that isn't itself a wake. The last action time is stamped before
// transmission; the motion detector uses it for its stop-condition dwell.
func (d *Desk) sendCommand(cmd comms.Command) error {
	d.mu.Lock()
	transport := d.transport
	if transport == nil {
		d.mu.Unlock()
		return ErrNoTransport
	}
	d.lastAction = time.Now()
	d.mu.Unlock()

	if cmd != comms.CommandWake {
		if err := transport.WriteCharacteristic(comms.DeskControlCharUUID, comms.CommandWake.Payload()); err != nil {
			return fmt.Errorf("failed to wake desk: %w", err)
		}
	}

	return transport.WriteCharacteristic(comms.DeskControlCharUUID, cmd.Payload())
}

// handleHeightNotification is the callback for height telemetry. Malformed
// frames are dropped with the motion state untouched for that tick.
func (d *Desk) handleHeightNotification(raw []byte) {
	if err := d.processTelemetry(raw, time.Now()); err != nil {
		log.Printf("discarding height notification: %v", err)
	}
}

// processTelemetry decodes one telemetry frame, feeds the motion detector,
// updates the session state, and dispatches the height-changed event.
func (d *Desk) processTelemetry(raw []byte, now time.Time) error {
	sample, err := comms.DecodeHeight(d.convert, raw, now)
	if err != nil {
		return err
	}

	d.mu.Lock()
	moving, _ := d.detector.Observe(sample.Inches, sample.ObservedAt, d.lastAction)
	d.height = sample.Inches
	d.moving = moving
	state := d.stateLocked()
	d.mu.Unlock()

	d.observers.Dispatch(godesk.EventHeightChanged, state)
	return nil
}

// handleNameNotification fires when the desk acknowledges a rename. The
// payload is an opaque ack and is not parsed further.
func (d *Desk) handleNameNotification(raw []byte) {
	d.mu.Lock()
	state := d.stateLocked()
	d.mu.Unlock()

	d.observers.Dispatch(godesk.EventNameAcknowledged, state)
}

func (d *Desk) stateLocked() godesk.State {
	return godesk.State{
		Address: d.address.String(),
		Name:    d.name,
		Height:  d.height,
		Moving:  d.moving,
	}
}

func (d *Desk) String() string {
	return fmt.Sprintf("%s - %s", d.name, d.address.String())
}
