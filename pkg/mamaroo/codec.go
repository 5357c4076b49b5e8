package mamaroo

// Binary protocol of the mamaRoo4 BLE GATT characteristic.
//
// The device pushes status notification frames and accepts 3-byte command
// frames on the same characteristic. Both layouts are fixed; changing any
// offset is a breaking protocol change.

const (
	// CharacteristicUUID is the single GATT characteristic used for both
	// status notifications and command writes.
	CharacteristicUUID = "622d0101-2416-0fa7-e132-2f1495cc2ce0"

	// Status frame discriminators. Frames starting with any other byte are
	// not status frames and must be ignored.
	frameStatusA = 0x41
	frameStatusS = 0x53

	// Command frame layout: {0x43, opcode, operand}.
	cmdHeader  = 0x43
	opcodePowr = 0x01
	opcodeMove = 0x02
	opcodeMode = 0x04
	opcodeSped = 0x06

	// Status frame offsets.
	offsetMode  = 1
	offsetSpeed = 2
	offsetPower = 5

	statusFrameMinLen = 6

	MinSpeed = 0
	MaxSpeed = 5
	MinMode  = 1
	MaxMode  = 5
)

// modeNames maps the device's mode index to its display name. Index 0 is
// unused by the device but kept so mode value == slice index.
var modeNames = [...]string{"", "Car Ride", "Kangaroo", "Tree Swing", "Rock-A-Bye", "Wave"}

// Mode is the motion pattern selector, valid values 1..5.
type Mode int

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return ""
	}
	return modeNames[m]
}

// ModeFromName resolves a mode display name to its index. Returns false for
// names the device does not know, including the empty placeholder.
func ModeFromName(name string) (Mode, bool) {
	for i := MinMode; i <= MaxMode; i++ {
		if modeNames[i] == name {
			return Mode(i), true
		}
	}
	return 0, false
}

// ModeNames returns the selectable mode names in device index order.
func ModeNames() []string {
	names := make([]string, 0, MaxMode)
	for i := MinMode; i <= MaxMode; i++ {
		names = append(names, modeNames[i])
	}
	return names
}

// DeviceState is the decoded content of one status notification frame.
// Bytes are passed through as reported; the device is trusted.
type DeviceState struct {
	Mode  int
	Speed int
	Power bool
}

// DecodeNotification decodes a raw notification frame. The second return
// value is false when the frame is not a status frame (wrong discriminator
// or too short), which is not an error condition.
func DecodeNotification(data []byte) (DeviceState, bool) {
	if len(data) < statusFrameMinLen {
		return DeviceState{}, false
	}
	if data[0] != frameStatusA && data[0] != frameStatusS {
		return DeviceState{}, false
	}
	return DeviceState{
		Mode:  int(data[offsetMode]),
		Speed: int(data[offsetSpeed]),
		Power: data[offsetPower] > 0,
	}, true
}

// WriteFrame is one 3-byte GATT command write.
type WriteFrame [3]byte

func (f WriteFrame) Bytes() []byte {
	return f[:]
}

func EncodePower(on bool) WriteFrame {
	return WriteFrame{cmdHeader, opcodePowr, boolByte(on)}
}

func EncodeMove(on bool) WriteFrame {
	return WriteFrame{cmdHeader, opcodeMove, boolByte(on)}
}

func EncodeSpeed(speed int) WriteFrame {
	return WriteFrame{cmdHeader, opcodeSped, byte(Clamp(MinSpeed, MaxSpeed, speed))}
}

func EncodeMode(mode int) WriteFrame {
	return WriteFrame{cmdHeader, opcodeMode, byte(Clamp(MinMode, MaxMode, mode))}
}

// Clamp returns the median of {lo, hi, value}. Out-of-range operands are
// corrected instead of rejected: the device ignores unknown values, but a
// malformed operand byte could desync its command parser.
func Clamp(lo, hi, value int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}
