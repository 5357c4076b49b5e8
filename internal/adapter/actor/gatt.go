package actor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"mamaroo2mqtt/internal/config"
	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/internal/core/port"
	"mamaroo2mqtt/internal/core/service"
	"mamaroo2mqtt/internal/util/actorutil"
	"mamaroo2mqtt/pkg/mamaroo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// GattActor owns the BLE link for the one bridged device. Each actor
// incarnation maps to exactly one connection attempt: any link failure
// panics, the supervisor restarts the actor and the restart starts a fresh
// connection with a fresh deduplicator.
type GattActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash

	link        port.GattLink
	eventStream *eventstream.EventStream
	dedup       *service.StateDeduplicator

	connectTimeout    time.Duration
	writeTimeout      time.Duration
	keepAliveInterval time.Duration

	scheduler       *scheduler.TimerScheduler
	cancelKeepAlive scheduler.CancelFunc
	// stopping is read by the write goroutine between frames. Set on
	// Stopping/Restarting so an in-flight sequence abandons promptly.
	stopping atomic.Bool
	logger   *zap.Logger
}

type gattConnected struct {
}

type gattConnectionLost struct {
	Error error
}

type gattNotification struct {
	data []byte
}

type gattKeepAliveTick struct {
}

type gattWriteResult struct {
	framesWritten int
	err           error
	replyTo       *actor.PID
}

func NewGattActor(cfg *config.Config, link port.GattLink, eventStream *eventstream.EventStream, logger *zap.Logger) *GattActor {
	act := &GattActor{
		link:              link,
		eventStream:       eventStream,
		dedup:             service.NewStateDeduplicator(),
		connectTimeout:    time.Duration(cfg.Bridge.ConnectTimeoutMillis) * time.Millisecond,
		writeTimeout:      time.Duration(cfg.Bridge.WriteTimeoutMillis) * time.Millisecond,
		keepAliveInterval: time.Duration(cfg.Bridge.KeepAliveIntervalMillis) * time.Millisecond,
		behavior:          actor.NewBehavior(),
		stash:             &actorutil.Stash{},
		logger:            actorutil.ActorLogger(domain.ACTOR_ID_GATT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *GattActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *GattActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("gatt@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)

		// connect in the background, the mailbox must stay responsive
		actorutil.NewBackgroundTask(ctx, func() (*gattConnected, error) {
			if err := state.link.Connect(); err != nil {
				return nil, err
			}
			return &gattConnected{}, nil
		}).WithTimeout(state.connectTimeout).OnError(func(err error) {
			ctx.Send(ctx.Self(), gattConnectionLost{Error: err})
		}).PipeTo(ctx.Self())
	case gattConnected:
		state.logger.Debug("gatt@starting connected")
		// notifications arrive on the BLE stack goroutine, hand them to the
		// mailbox without blocking
		err := state.link.Subscribe(func(data []byte) {
			ctx.Send(ctx.Self(), gattNotification{data: data})
		})
		if err != nil {
			panic(err)
		}
		state.cancelKeepAlive = state.scheduler.SendRepeatedly(state.keepAliveInterval, state.keepAliveInterval, ctx.Self(), gattKeepAliveTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case gattConnectionLost:
		state.logger.Error("gatt@starting connection failed", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("gatt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GattActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case gattNotification:
		state.handleNotification(msg.data)
	case gattKeepAliveTick:
		if !state.link.Connected() {
			state.logger.Error("gatt@default link lost")
			state.eventStream.Publish(domain.AvailabilityEvent{Online: false})
			panic(fmt.Errorf("BLE link lost"))
		}
	case domain.GattWriteRequest:
		state.logger.Debug("gatt@default GattWriteRequest", zap.Int("frames", len(msg.Frames)))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		frames := msg.Frames
		// writes run off the actor goroutine so Stopping and Restarting are
		// observed between frames
		go func() {
			ctx.Send(ctx.Self(), state.writeFrames(frames, sender))
		}()
		state.behavior.BecomeStacked(state.WaitingWriteReceive)
	case domain.GattReplayRequest:
		// a fresh MQTT session is listening now; republish what it missed
		state.logger.Debug("gatt@default GattReplayRequest")
		if last, ok := state.dedup.Last(); ok {
			state.eventStream.Publish(domain.AvailabilityEvent{Online: true})
			state.eventStream.Publish(domain.StateChangedEvent{State: last})
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("gatt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_GATT,
			Healthy: state.link.Connected(),
			State:   "idle",
		})
	case gattConnectionLost:
		state.logger.Error("gatt@default connection lost", zap.Error(msg.Error))
		state.eventStream.Publish(domain.AvailabilityEvent{Online: false})
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("gatt@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *GattActor) WaitingWriteReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case gattWriteResult:
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.GattWriteResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.err,
				},
				FramesWritten: msg.framesWritten,
			})
		}
		if msg.err != nil {
			// a failed write means the link is gone, let the supervisor
			// decide on a reconnect
			state.logger.Error("gatt@writing write failed", zap.Int("written", msg.framesWritten), zap.Error(msg.err))
			state.eventStream.Publish(domain.AvailabilityEvent{Online: false})
			panic(msg.err)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case gattNotification:
		state.handleNotification(msg.data)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("gatt@writing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GattActor) handleNotification(data []byte) {
	decoded, ok := mamaroo.DecodeNotification(data)
	if !ok {
		state.logger.Debug("gatt: ignored frame", zap.Int("len", len(data)))
		return
	}
	changed, first := state.dedup.Offer(decoded)
	if !changed {
		return
	}
	if first {
		state.eventStream.Publish(domain.AvailabilityEvent{Online: true})
	}
	state.logger.Debug("gatt: state changed",
		zap.Int("mode", decoded.Mode), zap.Int("speed", decoded.Speed), zap.Bool("power", decoded.Power))
	state.eventStream.Publish(domain.StateChangedEvent{State: decoded})
}

// writeFrames applies one command sequence in strict order. The first
// failure, link loss or shutdown abandons the remaining frames; an
// in-flight write always completes. Runs off the actor goroutine.
func (state *GattActor) writeFrames(frames []mamaroo.WriteFrame, replyTo *actor.PID) gattWriteResult {
	for i, frame := range frames {
		if state.stopping.Load() {
			return gattWriteResult{framesWritten: i, err: errors.New("shutting down"), replyTo: replyTo}
		}
		if !state.link.Connected() {
			return gattWriteResult{framesWritten: i, err: errors.New("BLE link lost"), replyTo: replyTo}
		}
		if err := state.writeFrame(frame); err != nil {
			logger.Error(err)
			return gattWriteResult{framesWritten: i, err: err, replyTo: replyTo}
		}
	}
	return gattWriteResult{framesWritten: len(frames), replyTo: replyTo}
}

// writeFrame bounds each GATT write with its own timeout so one slow ack
// does not consume the following frames' budget.
func (state *GattActor) writeFrame(frame mamaroo.WriteFrame) error {
	done := make(chan error, 1)
	go func() { done <- state.link.Write(frame) }()
	select {
	case err := <-done:
		return err
	case <-time.After(state.writeTimeout):
		return fmt.Errorf("gatt write timed out after %s", state.writeTimeout)
	}
}

func (state *GattActor) stop() {
	state.logger.Debug("gatt: disconnect")
	state.stopping.Store(true)
	if state.cancelKeepAlive != nil {
		state.cancelKeepAlive()
		state.cancelKeepAlive = nil
	}
	_ = state.link.Unsubscribe()
	_ = state.link.Disconnect()
}
