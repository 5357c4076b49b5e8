package service

import "mamaroo2mqtt/pkg/mamaroo"

// StateDeduplicator suppresses redundant state publishes. It holds the last
// accepted state for one BLE connection; across a reconnect gap the device's
// true state is unknown, so a fresh deduplicator must be used per connection
// (the GATT actor gets a new one on every restart).
type StateDeduplicator struct {
	last      *mamaroo.DeviceState
	announced bool
}

func NewStateDeduplicator() *StateDeduplicator {
	return &StateDeduplicator{}
}

// Offer compares the state against the last accepted one. changed is true
// when the state must be republished; first is true only for the first
// accepted state of this connection, which also drives the one-shot
// "online" availability publish.
func (d *StateDeduplicator) Offer(state mamaroo.DeviceState) (changed bool, first bool) {
	if d.last != nil && *d.last == state {
		return false, false
	}
	first = !d.announced
	d.announced = true
	d.last = &state
	return true, first
}

// Last returns the last accepted state, if any.
func (d *StateDeduplicator) Last() (mamaroo.DeviceState, bool) {
	if d.last == nil {
		return mamaroo.DeviceState{}, false
	}
	return *d.last, true
}
