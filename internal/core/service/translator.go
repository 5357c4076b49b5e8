package service

import (
	"fmt"
	"strconv"

	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/pkg/mamaroo"
)

// Routable command fields. The topic router maps the switch component to
// power and the select entity suffixes to mode/speed.
const (
	FieldPower = "power"
	FieldMode  = "mode"
	FieldSpeed = "speed"
)

// IntentFromCommand validates a routed command payload and produces the
// matching intent. A validation error means the message is dropped without
// any GATT write; it never affects the connection.
func IntentFromCommand(field, payload string) (domain.CommandIntent, error) {
	switch field {
	case FieldPower:
		return domain.PowerIntent{On: payload == "1"}, nil
	case FieldMode:
		mode, ok := mamaroo.ModeFromName(payload)
		if !ok {
			return nil, fmt.Errorf("unknown mode name %q", payload)
		}
		return domain.ModeIntent{Mode: mode}, nil
	case FieldSpeed:
		speed, err := strconv.Atoi(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid speed payload %q: %w", payload, err)
		}
		return domain.SpeedIntent{Speed: speed}, nil
	default:
		return nil, fmt.Errorf("unknown command field %q", field)
	}
}

// FramesForIntent sequences the GATT writes that realize an intent. The
// order within a speed command is a device protocol requirement: power must
// be asserted before motion parameters are accepted, and move latches the
// motor after the parameters are set.
func FramesForIntent(intent domain.CommandIntent) []mamaroo.WriteFrame {
	switch cmd := intent.(type) {
	case domain.PowerIntent:
		return []mamaroo.WriteFrame{mamaroo.EncodePower(cmd.On)}
	case domain.ModeIntent:
		return []mamaroo.WriteFrame{mamaroo.EncodeMode(int(cmd.Mode))}
	case domain.SpeedIntent:
		running := cmd.Speed > 0
		return []mamaroo.WriteFrame{
			mamaroo.EncodePower(running),
			mamaroo.EncodeSpeed(cmd.Speed),
			mamaroo.EncodeMove(running),
		}
	default:
		return nil
	}
}
