// Package comms implements the vendor wire protocol spoken by Uplift desks:
// the 6-byte control command frames, the rename packet, and decoding of the
// height telemetry the desk pushes over its notify characteristic.
package comms

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"
)

// The 16-bit block FE60 is allocated to Lierda Science & Technology Group,
// the vendor of the desk's BLE module.
var (
	// DiscoveryServiceUUID is advertised by the desk and used to find it.
	DiscoveryServiceUUID = bluetooth.New16BitUUID(0xFE60)

	// DeviceNameCharUUID is the standard Generic Access device name slot.
	DeviceNameCharUUID = bluetooth.New16BitUUID(0x2A00)

	// DeskNameCharUUID (write+notify) holds the name the desk firmware
	// derives its device name from. Writes are acknowledged by notification.
	DeskNameCharUUID = bluetooth.New16BitUUID(0xFE63)

	// DeskHeightCharUUID (read+notify) carries the desk's height telemetry.
	DeskHeightCharUUID = bluetooth.New16BitUUID(0xFE62)

	// DeskControlCharUUID (write) accepts the 6-byte command frames.
	DeskControlCharUUID = bluetooth.New16BitUUID(0xFE61)
)

// Command identifies one of the desk's control operations by its opcode.
type Command byte

const (
	// CommandWake brings the desk controller out of its low-power state.
	// The opcode appears not to matter; the desk just needs to see traffic.
	CommandWake Command = 0x00
	// CommandPressRaise emulates a tap of the raise button.
	CommandPressRaise Command = 0x01
	// CommandPressLower emulates a tap of the lower button.
	CommandPressLower Command = 0x02
	// CommandPresetSit drives the desk to the stored sitting preset.
	CommandPresetSit Command = 0x05
	// CommandPresetStand drives the desk to the stored standing preset.
	CommandPresetStand Command = 0x06
	// CommandRequestStatus asks the desk to publish its current height.
	CommandRequestStatus Command = 0x07
)

func (c Command) String() string {
	switch c {
	case CommandWake:
		return "wake"
	case CommandPressRaise:
		return "press-raise"
	case CommandPressLower:
		return "press-lower"
	case CommandPresetSit:
		return "preset-sit"
	case CommandPresetStand:
		return "preset-stand"
	case CommandRequestStatus:
		return "request-status"
	default:
		return fmt.Sprintf("unknown (0x%02X)", byte(c))
	}
}

// Command frame layout. The opcode is repeated at offset 4 as an echo field.
const (
	framePrefix byte = 0xF1
	frameSuffix byte = 0x7E
)

// Payload returns the 6-byte control frame for the command. The layout must
// be reproduced bit-for-bit for desk compatibility.
func (c Command) Payload() []byte {
	return []byte{framePrefix, framePrefix, byte(c), 0x00, byte(c), frameSuffix}
}

// Rename packet errors.
var (
	// ErrNameMissing is returned when a rename is attempted with an empty name.
	ErrNameMissing = errors.New("no desk name provided")
	// ErrNameTooLong is returned when the UTF-8 encoding of a name exceeds
	// the one-byte length field of the rename packet.
	ErrNameTooLong = errors.New("desk name exceeds 255 bytes")
)

// renameHeader precedes the UTF-8 name bytes; the final header byte is the
// byte length of the encoded name.
var renameHeader = []byte{0x01, 0xFC, 0x07}

// EncodeRename builds the packet that sets the desk's name. The length field
// counts UTF-8 bytes, not characters.
func EncodeRename(name string) ([]byte, error) {
	if name == "" {
		return nil, ErrNameMissing
	}
	if len(name) > 0xFF {
		return nil, ErrNameTooLong
	}

	packet := make([]byte, 0, len(renameHeader)+1+len(name))
	packet = append(packet, renameHeader...)
	packet = append(packet, byte(len(name)))
	packet = append(packet, name...)
	return packet, nil
}
