package uplift

import (
	"fmt"
	"log"

	"tinygo.org/x/bluetooth"

	"github.com/upliftdesk/godesk/pkg/desks/uplift/comms"
)

// Transport is the characteristic-level surface the desk controller needs
// from a BLE link. The production implementation wraps a connected GATT
// device; tests substitute a fake.
type Transport interface {
	WriteCharacteristic(char bluetooth.UUID, data []byte) error
	ReadCharacteristic(char bluetooth.UUID) ([]byte, error)
	SubscribeNotifications(char bluetooth.UUID, handler func([]byte)) error
	UnsubscribeNotifications(char bluetooth.UUID) error
}

// gattTransport maps characteristic UUIDs onto the characteristics
// discovered on a connected device.
type gattTransport struct {
	chars map[bluetooth.UUID]bluetooth.DeviceCharacteristic
}

// newGATTTransport discovers the desk's services and collects the
// characteristics the protocol uses. The control and height characteristics
// are mandatory; the name characteristics vary by firmware and are picked up
// when present.
func newGATTTransport(device bluetooth.Device) (*gattTransport, error) {
	log.Println("Discovering services...")
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("could not discover services: %w", err)
	}

	wanted := map[bluetooth.UUID]bool{
		comms.DeskControlCharUUID: true,
		comms.DeskHeightCharUUID:  true,
		comms.DeskNameCharUUID:    true,
		comms.DeviceNameCharUUID:  true,
	}

	t := &gattTransport{chars: make(map[bluetooth.UUID]bluetooth.DeviceCharacteristic)}

	for _, service := range services {
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			log.Printf("skipping service %v: %v", service, err)
			continue
		}
		for _, char := range chars {
			if wanted[char.UUID()] {
				t.chars[char.UUID()] = char
			}
		}
	}

	if _, ok := t.chars[comms.DeskControlCharUUID]; !ok {
		return nil, fmt.Errorf("desk control characteristic %s not found", comms.DeskControlCharUUID.String())
	}
	if _, ok := t.chars[comms.DeskHeightCharUUID]; !ok {
		return nil, fmt.Errorf("desk height characteristic %s not found", comms.DeskHeightCharUUID.String())
	}

	log.Println("Successfully set up characteristics.")
	return t, nil
}

func (t *gattTransport) characteristic(char bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	c, ok := t.chars[char]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not available on this desk", char.String())
	}
	return c, nil
}

func (t *gattTransport) WriteCharacteristic(char bluetooth.UUID, data []byte) error {
	c, err := t.characteristic(char)
	if err != nil {
		return err
	}
	_, err = c.WriteWithoutResponse(data)
	return err
}

func (t *gattTransport) ReadCharacteristic(char bluetooth.UUID) ([]byte, error) {
	c, err := t.characteristic(char)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 64)
	n, err := c.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *gattTransport) SubscribeNotifications(char bluetooth.UUID, handler func([]byte)) error {
	c, err := t.characteristic(char)
	if err != nil {
		return err
	}
	return c.EnableNotifications(handler)
}

func (t *gattTransport) UnsubscribeNotifications(char bluetooth.UUID) error {
	c, err := t.characteristic(char)
	if err != nil {
		return err
	}
	// A nil callback disables notifications.
	return c.EnableNotifications(nil)
}
