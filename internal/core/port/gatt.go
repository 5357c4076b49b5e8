package port

import "mamaroo2mqtt/pkg/mamaroo"

// GattLink is the BLE transport capability the bridge consumes. Implemented
// by mamaroo.Link (bluez) and mamaroo.TestGattLink (tests).
type GattLink interface {
	// Connect opens the link and resolves the device characteristic. Blocks
	// up to the link's connect timeout.
	Connect() error
	// Subscribe registers the notification handler. The handler runs on the
	// BLE stack's delivery goroutine and must not block.
	Subscribe(handler func([]byte)) error
	Unsubscribe() error
	// Write sends one command frame and blocks until acknowledged.
	Write(frame mamaroo.WriteFrame) error
	// Connected reports the current link-up state without I/O.
	Connected() bool
	Disconnect() error
}
