package actor

import (
	"sync"
	"testing"
	"time"

	"mamaroo2mqtt/internal/config"
	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/internal/util"
	"mamaroo2mqtt/internal/util/actorutil"
	"mamaroo2mqtt/pkg/mamaroo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// eventRecorder collects event stream messages for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []any
}

func (r *eventRecorder) record(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, value)
}

func (r *eventRecorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.events))
	copy(out, r.events)
	return out
}

func statusFrame(mode, speed, power byte) []byte {
	return []byte{0x41, mode, speed, 0x00, 0x00, power}
}

func spawnGattActor(t *testing.T, link *mamaroo.TestGattLink) (*actor.ActorSystem, *actor.PID, *eventRecorder) {
	t.Helper()
	cfg := util.LoadTestConfig()
	return spawnGattActorWithConfig(t, link, cfg)
}

func spawnGattActorWithConfig(t *testing.T, link *mamaroo.TestGattLink, cfg config.Config) (*actor.ActorSystem, *actor.PID, *eventRecorder) {
	t.Helper()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	es := &eventstream.EventStream{}
	recorder := &eventRecorder{}
	es.Subscribe(recorder.record)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewGattActor(&cfg, link, es, logger)
	})
	pid := as.Root.Spawn(props)

	return as, pid, recorder
}

func TestGattActorPublishesStateAndAvailability(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, recorder := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	link.Notify(statusFrame(2, 3, 1))
	time.Sleep(500 * time.Millisecond)

	events := recorder.snapshot()
	if assert.Len(t, events, 2) {
		av, ok := events[0].(domain.AvailabilityEvent)
		assert.True(t, ok)
		assert.True(t, av.Online)

		st, ok := events[1].(domain.StateChangedEvent)
		assert.True(t, ok)
		assert.Equal(t, mamaroo.DeviceState{Mode: 2, Speed: 3, Power: true}, st.State)
	}

	as.Root.Stop(pid)
}

func TestGattActorSuppressesRepeatedState(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, recorder := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	link.Notify(statusFrame(2, 3, 1))
	link.Notify(statusFrame(2, 3, 1))
	link.Notify(statusFrame(2, 3, 1))
	link.Notify(statusFrame(2, 4, 1))
	time.Sleep(500 * time.Millisecond)

	events := recorder.snapshot()
	// online + first state + second distinct state
	assert.Len(t, events, 3)

	as.Root.Stop(pid)
}

func TestGattActorIgnoresNonStatusFrames(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, recorder := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	link.Notify([]byte{0x99, 1, 2, 3, 4, 5})
	link.Notify([]byte{0x41, 1})
	time.Sleep(500 * time.Millisecond)

	assert.Empty(t, recorder.snapshot())

	as.Root.Stop(pid)
}

func TestGattActorWritesFramesInOrder(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, _ := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	frames := []mamaroo.WriteFrame{
		mamaroo.EncodePower(true),
		mamaroo.EncodeSpeed(3),
		mamaroo.EncodeMove(true),
	}
	res, err := as.Root.RequestFuture(pid, domain.GattWriteRequest{Frames: frames}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := res.(domain.GattWriteResponse)
	assert.True(t, ok)
	assert.False(t, resp.HasResponseError())
	assert.Equal(t, 3, resp.FramesWritten)

	assert.Equal(t, frames, link.Frames())

	as.Root.Stop(pid)
}

func TestGattActorReportsPartialWrite(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	link.FailAfterWrites = 1
	as, pid, _ := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	frames := []mamaroo.WriteFrame{
		mamaroo.EncodePower(true),
		mamaroo.EncodeSpeed(3),
		mamaroo.EncodeMove(true),
	}
	res, err := as.Root.RequestFuture(pid, domain.GattWriteRequest{Frames: frames}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := res.(domain.GattWriteResponse)
	assert.True(t, ok)
	assert.True(t, resp.HasResponseError())
	assert.Equal(t, 1, resp.FramesWritten)

	as.Root.Stop(pid)
}

func TestGattActorReplaysLastState(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, recorder := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	link.Notify(statusFrame(2, 3, 1))
	time.Sleep(500 * time.Millisecond)

	// a broker session that subscribed after the notification asks for a
	// replay of what it missed
	as.Root.Send(pid, domain.GattReplayRequest{})
	time.Sleep(500 * time.Millisecond)

	events := recorder.snapshot()
	if assert.Len(t, events, 4) {
		av, ok := events[2].(domain.AvailabilityEvent)
		assert.True(t, ok)
		assert.True(t, av.Online)

		st, ok := events[3].(domain.StateChangedEvent)
		assert.True(t, ok)
		assert.Equal(t, mamaroo.DeviceState{Mode: 2, Speed: 3, Power: true}, st.State)
	}

	as.Root.Stop(pid)
}

func TestGattActorReplayBeforeFirstStateIsSilent(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, recorder := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	// nothing has been received from the device yet, there is nothing to
	// replay
	as.Root.Send(pid, domain.GattReplayRequest{})
	time.Sleep(500 * time.Millisecond)

	assert.Empty(t, recorder.snapshot())

	as.Root.Stop(pid)
}

func TestGattActorRepublishesAfterReconnect(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	cfg := util.LoadTestConfig()
	cfg.Bridge.KeepAliveIntervalMillis = 200
	as, pid, recorder := spawnGattActorWithConfig(t, link, cfg)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	link.Notify(statusFrame(2, 3, 1))
	time.Sleep(400 * time.Millisecond)

	// radio-level link loss, the keepalive tick notices and the actor
	// restarts into a fresh connection
	link.DropLink()
	time.Sleep(1 * time.Second)

	assert.True(t, link.Connected(), "link reconnected after restart")
	assert.GreaterOrEqual(t, link.ConnectCalls(), 2)

	// the restart resets deduplication, an unchanged device state is
	// published again so the broker recovers from the offline gap
	link.Notify(statusFrame(2, 3, 1))
	time.Sleep(400 * time.Millisecond)

	events := recorder.snapshot()
	if assert.Len(t, events, 5) {
		assert.Equal(t, domain.AvailabilityEvent{Online: true}, events[0])
		assert.Equal(t, domain.StateChangedEvent{State: mamaroo.DeviceState{Mode: 2, Speed: 3, Power: true}}, events[1])
		assert.Equal(t, domain.AvailabilityEvent{Online: false}, events[2])
		assert.Equal(t, domain.AvailabilityEvent{Online: true}, events[3])
		assert.Equal(t, domain.StateChangedEvent{State: mamaroo.DeviceState{Mode: 2, Speed: 3, Power: true}}, events[4])
	}

	as.Root.Stop(pid)
}

func TestGattActorAbandonsSequenceOnLinkDrop(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	link.WriteDelay = 200 * time.Millisecond
	as, pid, _ := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	frames := []mamaroo.WriteFrame{
		mamaroo.EncodePower(true),
		mamaroo.EncodeSpeed(3),
		mamaroo.EncodeMove(true),
	}

	// the link dies while the first write's ack is pending
	go func() {
		time.Sleep(100 * time.Millisecond)
		link.DropLink()
	}()

	res, err := as.Root.RequestFuture(pid, domain.GattWriteRequest{Frames: frames}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := res.(domain.GattWriteResponse)
	assert.True(t, ok)
	assert.True(t, resp.HasResponseError())
	assert.Equal(t, 1, resp.FramesWritten)
	assert.Len(t, link.Frames(), 1)

	as.Root.Stop(pid)
}

func TestGattActorStopsSequenceMidCommand(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	link.WriteDelay = 200 * time.Millisecond
	as, pid, _ := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	frames := []mamaroo.WriteFrame{
		mamaroo.EncodePower(true),
		mamaroo.EncodeSpeed(3),
		mamaroo.EncodeMove(true),
	}
	as.Root.Send(pid, domain.GattWriteRequest{Frames: frames})

	// stop while the first write's ack is pending, the remaining frames
	// must never reach the device
	time.Sleep(100 * time.Millisecond)
	as.Root.Stop(pid)
	time.Sleep(600 * time.Millisecond)

	assert.Len(t, link.Frames(), 1)
}

func TestGattActorHealthCheck(t *testing.T) {

	link := mamaroo.NewTestGattLink()
	as, pid, _ := spawnGattActor(t, link)
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.Equal(t, domain.ACTOR_ID_GATT, resp.Id)
	assert.True(t, resp.Healthy)

	as.Root.Stop(pid)
}
