package godesk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

// fakeDesk satisfies Desk by embedding; tests only need its identity.
type fakeDesk struct {
	Desk
	device *FoundDevice
}

func TestRegistryMatchesByService(t *testing.T) {
	service := bluetooth.New16BitUUID(0xABCD)
	Register(service, func(d *FoundDevice) Desk {
		return &fakeDesk{device: d}
	})

	device := &FoundDevice{Name: "TEST-DESK", Service: service}
	desk, err := NewDeskForDevice(device)
	require.NoError(t, err)

	fake, ok := desk.(*fakeDesk)
	require.True(t, ok)
	assert.Equal(t, device, fake.device)
}

func TestRegistryUnknownService(t *testing.T) {
	device := &FoundDevice{
		Name:    "SOMETHING-ELSE",
		Service: bluetooth.New16BitUUID(0x1234),
	}

	_, err := NewDeskForDevice(device)
	assert.Error(t, err)
}
