package domain

import (
	"fmt"

	"mamaroo2mqtt/pkg/mamaroo"
)

// CommandIntent is a validated inbound command, one variant per routable
// field. Produced by the command translator from a routed MQTT message.
type CommandIntent interface {
	CommandIntent() string
}

type CommandIntentMixIn struct{}

func (c CommandIntentMixIn) CommandIntent() string {
	return fmt.Sprintf("%T", c)
}

type PowerIntent struct {
	CommandIntentMixIn
	On bool
}

type ModeIntent struct {
	CommandIntentMixIn
	Mode mamaroo.Mode
}

type SpeedIntent struct {
	CommandIntentMixIn
	Speed int
}

// ensure interface compliance
var _ CommandIntent = (*PowerIntent)(nil)
var _ CommandIntent = (*ModeIntent)(nil)
var _ CommandIntent = (*SpeedIntent)(nil)
