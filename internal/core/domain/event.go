package domain

import "mamaroo2mqtt/pkg/mamaroo"

// Events published on the bridge event stream by the GATT actor and mirrored
// outward by the MQTT actor.

// StateChangedEvent carries a decoded device state that differs from the
// last published one. Emitted at most once per accepted notification.
type StateChangedEvent struct {
	State mamaroo.DeviceState
}

// AvailabilityEvent signals device reachability. Online fires exactly once
// per BLE connection lifetime, before the first state publish; Offline fires
// on link loss and on shutdown.
type AvailabilityEvent struct {
	Online bool
}
