package uplift

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"github.com/upliftdesk/godesk"
	"github.com/upliftdesk/godesk/pkg/desks/uplift/comms"
)

// fakeTransport records every call for inspection.
type fakeTransport struct {
	writes []write
	reads  map[bluetooth.UUID][]byte

	writeErr       error
	readErr        error
	unsubscribeErr error
	unsubscribes   []bluetooth.UUID
}

type write struct {
	char bluetooth.UUID
	data []byte
}

func (f *fakeTransport) WriteCharacteristic(char bluetooth.UUID, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, write{char: char, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeTransport) ReadCharacteristic(char bluetooth.UUID) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.reads[char], nil
}

func (f *fakeTransport) SubscribeNotifications(char bluetooth.UUID, handler func([]byte)) error {
	return nil
}

func (f *fakeTransport) UnsubscribeNotifications(char bluetooth.UUID) error {
	f.unsubscribes = append(f.unsubscribes, char)
	return f.unsubscribeErr
}

// byteConvert reads a one-byte frame as half inches, so tests can express
// fractional heights.
func byteConvert(raw []byte) (float64, error) {
	if len(raw) != 1 {
		return 0, fmt.Errorf("want 1 byte, got %d", len(raw))
	}
	return float64(raw[0]) / 2, nil
}

func newTestDesk(t *testing.T) (*Desk, *fakeTransport) {
	t.Helper()
	desk := NewWithConverter(&godesk.FoundDevice{Name: "UPLIFT-TEST"}, byteConvert)
	transport := &fakeTransport{reads: make(map[bluetooth.UUID][]byte)}
	desk.transport = transport
	return desk, transport
}

func TestCommandsAreWakePrefixed(t *testing.T) {
	tests := []struct {
		name   string
		op     func(*Desk) error
		opcode comms.Command
	}{
		{"move to standing", (*Desk).MoveToStanding, comms.CommandPresetStand},
		{"move to sitting", (*Desk).MoveToSitting, comms.CommandPresetSit},
		{"press raise", (*Desk).PressRaise, comms.CommandPressRaise},
		{"press lower", (*Desk).PressLower, comms.CommandPressLower},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk, transport := newTestDesk(t)
			require.NoError(t, tt.op(desk))

			require.Len(t, transport.writes, 2)
			assert.Equal(t, comms.DeskControlCharUUID, transport.writes[0].char)
			assert.Equal(t, comms.CommandWake.Payload(), transport.writes[0].data)
			assert.Equal(t, comms.DeskControlCharUUID, transport.writes[1].char)
			assert.Equal(t, tt.opcode.Payload(), transport.writes[1].data)
		})
	}
}

func TestWakeIsASingleWrite(t *testing.T) {
	desk, transport := newTestDesk(t)
	require.NoError(t, desk.Wake())

	require.Len(t, transport.writes, 1)
	assert.Equal(t, comms.CommandWake.Payload(), transport.writes[0].data)
}

func TestCommandStampsLastAction(t *testing.T) {
	desk, _ := newTestDesk(t)
	before := time.Now()
	require.NoError(t, desk.MoveToStanding())

	desk.mu.Lock()
	defer desk.mu.Unlock()
	assert.False(t, desk.lastAction.Before(before))
}

func TestOperationsWithoutTransport(t *testing.T) {
	desk := NewWithConverter(&godesk.FoundDevice{Name: "UPLIFT-TEST"}, byteConvert)

	assert.ErrorIs(t, desk.MoveToStanding(), ErrNoTransport)
	assert.ErrorIs(t, desk.Rename("Desk1"), ErrNoTransport)
	_, err := desk.ReadHeight()
	assert.ErrorIs(t, err, ErrNoTransport)
	_, err = desk.ReadDeviceName()
	assert.ErrorIs(t, err, ErrNoTransport)
	assert.ErrorIs(t, desk.Disconnect(), ErrNoTransport)
}

func TestTransportErrorsPropagate(t *testing.T) {
	desk, transport := newTestDesk(t)
	linkDown := errors.New("link down")
	transport.writeErr = linkDown

	assert.ErrorIs(t, desk.MoveToSitting(), linkDown)
}

func TestReadHeight(t *testing.T) {
	desk, transport := newTestDesk(t)
	transport.reads[comms.DeskHeightCharUUID] = []byte{65} // 32.5 in

	height, err := desk.ReadHeight()
	require.NoError(t, err)
	assert.Equal(t, 32.5, height)
	assert.Equal(t, 32.5, desk.Height())

	// A wake-prefixed status request precedes the read.
	require.Len(t, transport.writes, 2)
	assert.Equal(t, comms.CommandWake.Payload(), transport.writes[0].data)
	assert.Equal(t, comms.CommandRequestStatus.Payload(), transport.writes[1].data)
}

func TestRename(t *testing.T) {
	desk, transport := newTestDesk(t)
	require.NoError(t, desk.Rename("Desk1"))

	require.Len(t, transport.writes, 1)
	assert.Equal(t, comms.DeskNameCharUUID, transport.writes[0].char)
	assert.Equal(t, []byte{0x01, 0xFC, 0x07, 5, 'D', 'e', 's', 'k', '1'}, transport.writes[0].data)
}

func TestRenameRejectsBadNamesBeforeIO(t *testing.T) {
	desk, transport := newTestDesk(t)

	assert.ErrorIs(t, desk.Rename(""), comms.ErrNameMissing)
	assert.Empty(t, transport.writes, "invalid names must be rejected before any write")
}

func TestTelemetryUpdatesStateAndNotifies(t *testing.T) {
	desk, _ := newTestDesk(t)

	var heights []float64
	var movings []bool
	desk.Subscribe(godesk.EventHeightChanged, func(s godesk.State) {
		heights = append(heights, s.Height)
		movings = append(movings, s.Moving)
	})

	start := time.Now()
	desk.lastAction = start

	// 30.0, 30.0, then 32.5 repeating: motion starts on the change and
	// settles once four trailing samples agree past the dwell.
	frames := []byte{60, 60, 65, 65, 65, 65, 65}
	for i, frame := range frames {
		require.NoError(t, desk.processTelemetry([]byte{frame}, start.Add(time.Duration(i)*2*time.Second)))
	}

	assert.Equal(t, []float64{30, 30, 32.5, 32.5, 32.5, 32.5, 32.5}, heights)
	assert.Equal(t, []bool{false, false, true, true, true, true, false}, movings)
	assert.Equal(t, 32.5, desk.Height())
	assert.False(t, desk.Moving())
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	desk, _ := newTestDesk(t)

	var order []string
	desk.Subscribe(godesk.EventHeightChanged, func(godesk.State) { order = append(order, "first") })
	desk.Subscribe(godesk.EventHeightChanged, func(godesk.State) { order = append(order, "second") })

	require.NoError(t, desk.processTelemetry([]byte{60}, time.Now()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestMalformedTelemetryLeavesStateUntouched(t *testing.T) {
	desk, _ := newTestDesk(t)

	notified := 0
	desk.Subscribe(godesk.EventHeightChanged, func(godesk.State) { notified++ })

	now := time.Now()
	desk.lastAction = now.Add(-time.Minute)
	require.NoError(t, desk.processTelemetry([]byte{60}, now))
	require.NoError(t, desk.processTelemetry([]byte{65}, now.Add(2*time.Second)))
	require.True(t, desk.Moving())

	err := desk.processTelemetry([]byte{1, 2, 3}, now.Add(4*time.Second))
	assert.ErrorIs(t, err, comms.ErrMalformedTelemetry)

	// The bad frame is discarded: height, motion, and observers see nothing.
	assert.Equal(t, 32.5, desk.Height())
	assert.True(t, desk.Moving())
	assert.Equal(t, 2, notified)
}

func TestNameAckDispatch(t *testing.T) {
	desk, _ := newTestDesk(t)

	acks := 0
	desk.Subscribe(godesk.EventNameAcknowledged, func(godesk.State) { acks++ })

	// The ack payload is opaque and ignored.
	desk.handleNameNotification([]byte{0x04, 0xFC, 0x07, 0x01, 0x00})
	assert.Equal(t, 1, acks)
}

func TestDisconnectSwallowsUnsubscribeFailure(t *testing.T) {
	desk, transport := newTestDesk(t)
	transport.unsubscribeErr = errors.New("link already dropped")

	assert.NoError(t, desk.Disconnect())
	assert.Equal(t, []bluetooth.UUID{comms.DeskHeightCharUUID, comms.DeskNameCharUUID}, transport.unsubscribes)
}
