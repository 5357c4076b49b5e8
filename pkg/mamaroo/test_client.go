package mamaroo

import (
	"errors"
	"sync"
	"time"
)

// TestGattLink is an in-memory GATT link for tests. It records every write
// in order and lets tests inject notification frames.
type TestGattLink struct {
	mu           sync.Mutex
	handler      func([]byte)
	frames       []WriteFrame
	connected    bool
	connectCalls int

	// FailAfterWrites makes Write fail once that many writes succeeded.
	// Negative means never fail.
	FailAfterWrites int
	// ConnectErr makes every Connect attempt fail when set.
	ConnectErr error
	// WriteDelay simulates acknowledgement latency. The frame is committed
	// before the delay, like a write that went out before the ack arrives.
	WriteDelay time.Duration
}

func NewTestGattLink() *TestGattLink {
	return &TestGattLink{FailAfterWrites: -1}
}

func (l *TestGattLink) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connectCalls++
	if l.ConnectErr != nil {
		return l.ConnectErr
	}
	l.connected = true
	return nil
}

func (l *TestGattLink) Subscribe(handler func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return errors.New("not connected")
	}
	l.handler = handler
	return nil
}

func (l *TestGattLink) Unsubscribe() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = nil
	return nil
}

func (l *TestGattLink) Write(frame WriteFrame) error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return errors.New("not connected")
	}
	if l.FailAfterWrites >= 0 && len(l.frames) >= l.FailAfterWrites {
		l.mu.Unlock()
		return errors.New("gatt write failed")
	}
	l.frames = append(l.frames, frame)
	delay := l.WriteDelay
	l.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

func (l *TestGattLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *TestGattLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

// Notify delivers a raw frame to the subscribed handler, as the BLE stack
// would on its delivery goroutine.
func (l *TestGattLink) Notify(data []byte) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

// DropLink simulates a radio-level link loss without a clean disconnect.
func (l *TestGattLink) DropLink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
}

// ConnectCalls returns how many connection attempts were made.
func (l *TestGattLink) ConnectCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectCalls
}

// Frames returns a copy of all frames written so far, in write order.
func (l *TestGattLink) Frames() []WriteFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]WriteFrame, len(l.frames))
	copy(out, l.frames)
	return out
}
