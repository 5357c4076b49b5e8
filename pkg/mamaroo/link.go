package mamaroo

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"
)

// Link is the BLE GATT transport to one mamaRoo4 device, addressed by MAC.
// Connect must succeed before any other call. A Link is not reusable after
// Disconnect; build a new one per connection attempt.
type Link struct {
	mac            string
	connectTimeout time.Duration

	adapter   *bluetooth.Adapter
	device    bluetooth.Device
	char      bluetooth.DeviceCharacteristic
	hasDevice bool
	connected atomic.Bool
}

func NewLink(mac string, connectTimeout time.Duration) *Link {
	return &Link{
		mac:            mac,
		connectTimeout: connectTimeout,
		adapter:        bluetooth.DefaultAdapter,
	}
}

// Connect enables the adapter, opens the link and resolves the command
// characteristic. The adapter connect handler keeps the link-up flag
// current so liveness polling does not need a GATT round trip.
func (l *Link) Connect() error {
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	mac, err := bluetooth.ParseMAC(strings.ToUpper(l.mac))
	if err != nil {
		return fmt.Errorf("parse device address %q: %w", l.mac, err)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	l.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if strings.EqualFold(device.Address.String(), addr.String()) {
			l.connected.Store(connected)
		}
	})

	device, err := l.adapter.Connect(addr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(l.connectTimeout),
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", l.mac, err)
	}
	l.device = device
	l.hasDevice = true
	l.connected.Store(true)

	char, err := l.findCharacteristic()
	if err != nil {
		_ = device.Disconnect()
		return err
	}
	l.char = char
	return nil
}

func (l *Link) findCharacteristic() (bluetooth.DeviceCharacteristic, error) {
	var zero bluetooth.DeviceCharacteristic

	services, err := l.device.DiscoverServices(nil)
	if err != nil {
		return zero, fmt.Errorf("discover services: %w", err)
	}
	for _, service := range services {
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		for _, char := range chars {
			if strings.EqualFold(char.UUID().String(), CharacteristicUUID) {
				return char, nil
			}
		}
	}
	return zero, fmt.Errorf("characteristic %s not found on %s", CharacteristicUUID, l.mac)
}

// Subscribe registers the notification handler. The handler is invoked on
// the BLE stack's delivery goroutine and must not block.
func (l *Link) Subscribe(handler func([]byte)) error {
	if !l.hasDevice {
		return errors.New("gatt link not connected")
	}
	return l.char.EnableNotifications(handler)
}

func (l *Link) Unsubscribe() error {
	if !l.hasDevice {
		return nil
	}
	return l.char.EnableNotifications(nil)
}

// Write sends one command frame and blocks until the write is acknowledged
// by the bluez stack or fails.
func (l *Link) Write(frame WriteFrame) error {
	if !l.hasDevice {
		return errors.New("gatt link not connected")
	}
	if _, err := l.char.WriteWithoutResponse(frame.Bytes()); err != nil {
		return fmt.Errorf("gatt write: %w", err)
	}
	return nil
}

func (l *Link) Connected() bool {
	return l.connected.Load()
}

func (l *Link) Disconnect() error {
	if !l.hasDevice {
		return nil
	}
	l.connected.Store(false)
	return l.device.Disconnect()
}

// ForceDisconnect clears any stale OS-level link to the device via
// bluetoothctl. A crashed prior instance leaves the kernel connection open,
// which blocks new connection attempts until cleared. Best-effort: callers
// ignore the returned error.
func ForceDisconnect(mac string, timeout time.Duration) error {
	cmd := exec.Command("bluetoothctl", "disconnect", mac)
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		return errors.New("bluetoothctl disconnect timed out")
	}
}
