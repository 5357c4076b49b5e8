package actor

import (
	"fmt"
	"log"
	"time"

	adactor "mamaroo2mqtt/internal/adapter/actor"
	"mamaroo2mqtt/internal/config"
	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/internal/core/service"
	. "mamaroo2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type GattActorProvider func(*eventstream.EventStream) *adactor.GattActor

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// BridgeActor supervises the two adapters and translates broker commands
// into GATT write sequences. Adapter failures are absorbed by bounded
// restarts; when a child exhausts its restarts and terminates, the bridge
// reports it on the fatal channel so the process can exit and be restarted
// externally.
type BridgeActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	gattActor          *actor.PID
	mqttActor          *actor.PID
	gattActorProvider  GattActorProvider
	mqttActorProvider  MQTTActorProvider
	fatal              chan<- error
	logger             *zap.Logger
}

type healthCheckResult struct {
	gattActorHealthy bool
	mqttActorHealthy bool
	checksReceived   int
	respondTo        *actor.PID
}

// BridgeSupervisorStrategy bounds the restarts of the bridge's children.
// protoactor consults the strategy on the PARENT's Props when a child
// fails, so this must be attached to the bridge actor's own Props by
// whoever spawns it. One-for-one counts failures per child: the GATT
// actor gets MaxConnectAttempts reconnects, the MQTT actor the same
// allowance for broker reconnects, before the child is stopped and the
// bridge reports it as fatal.
func BridgeSupervisorStrategy(cfg config.Config) actor.SupervisorStrategy {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	return actor.NewOneForOneStrategy(int(cfg.Bridge.MaxConnectAttempts), 10*time.Minute, decider)
}

func NewBridgeActor(config config.Config, gattActorProvider GattActorProvider, mqttActorProvider MQTTActorProvider,
	fatal chan<- error, logger *zap.Logger) *BridgeActor {
	act := &BridgeActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_BRIDGE, logger),
		eventStream:       &eventstream.EventStream{},
		gattActorProvider: gattActorProvider,
		mqttActorProvider: mqttActorProvider,
		fatal:             fatal,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *BridgeActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BridgeActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("bridge@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child first so GATT state changes have somewhere to go
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		gattActorPID, err := state.startGattActor(ctx)
		if err != nil {
			panic(err)
		}
		state.gattActor = gattActorPID

		if _, err := state.startHADiscoveryActor(ctx); err != nil {
			panic(err)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("bridge@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BridgeActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("bridge@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gattActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_GATT,
				Healthy: false,
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.MQTTSessionUp:
		// a fresh broker session missed anything published before it
		// subscribed, ask the GATT side to republish
		state.logger.Debug("bridge@default mqtt session up")
		ctx.Send(state.gattActor, domain.GattReplayRequest{})
	case adactor.ParsedCommand:
		state.logger.Debug("bridge@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			state.handleCommand(ctx, msg.Command.Field, msg.Command.Payload)
		}
	case domain.GattWriteResponse:
		// command writes are fire-and-forget, only the outcome is logged
		if msg.HasResponseError() {
			state.logger.Error("bridge@default command write failed",
				zap.Int("framesWritten", msg.FramesWritten), zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("bridge@default command applied", zap.Int("framesWritten", msg.FramesWritten))
		}
	case *actor.Terminated:
		// a terminated adapter has exhausted its restarts, give up. The
		// discovery actor is best-effort and never brings the process down.
		state.logger.Error("bridge@default child terminated", zap.String("who", msg.Who.Id))
		if state.isAdapterChild(msg.Who) && state.fatal != nil {
			state.fatal <- fmt.Errorf("actor %s terminated", msg.Who.Id)
		}
	default:
		state.logger.Debug("bridge@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// handleCommand validates one routed broker command and forwards the
// resulting write sequence to the GATT actor. Invalid payloads are dropped
// here, they never reach the device.
func (state *BridgeActor) handleCommand(ctx actor.Context, field, payload string) {
	intent, err := service.IntentFromCommand(field, payload)
	if err != nil {
		state.logger.Warn("bridge@default dropped invalid command",
			zap.String("field", field), zap.String("payload", payload), zap.Error(err))
		return
	}
	frames := service.FramesForIntent(intent)
	if len(frames) == 0 {
		return
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gattActor, domain.GattWriteRequest{Frames: frames}, 5*time.Second), func(err error) any {
		return domain.GattWriteResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *BridgeActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("bridge@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_GATT {
				state.currentHealthCheck.gattActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_MQTT {
				state.currentHealthCheck.mqttActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("bridge@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BridgeActor) isAdapterChild(who *actor.PID) bool {
	return who.Id == state.gattActor.Id || who.Id == state.mqttActor.Id
}

func (state *BridgeActor) startGattActor(ctx actor.Context) (*actor.PID, error) {

	// restarts are the reconnect loop, bounded by BridgeSupervisorStrategy
	// on the bridge's own Props
	gattProps := actor.PropsFromProducer(func() actor.Actor {
		return state.gattActorProvider(state.eventStream)
	})
	gattActorPID, err := ctx.SpawnNamed(gattProps, domain.ACTOR_ID_GATT)
	if err != nil {
		return nil, err
	}

	return gattActorPID, nil
}

func (state *BridgeActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	})
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *BridgeActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	// discovery retries until the GATT side comes up, under the same
	// per-child restart bound as the adapters. A terminated discovery
	// actor is never fatal, see the Terminated handler.
	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.gattActor, state.mqttActor, state.logger)
	})
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.gattActorHealthy = false
	state.mqttActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 2
}

func (state *healthCheckResult) allHealthy() bool {
	return state.gattActorHealthy && state.mqttActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_BRIDGE,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
