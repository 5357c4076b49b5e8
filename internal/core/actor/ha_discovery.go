package actor

import (
	"errors"
	"fmt"
	"time"

	"mamaroo2mqtt/internal/config"
	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/internal/core/events"
	"mamaroo2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor is a one-shot worker. It waits until both adapters report
// healthy, publishes the Home Assistant discovery configs for the device's
// three entities and then stays idle.
type HADiscoveryActor struct {
	config          *config.Config
	behavior        actor.Behavior
	stash           *actorutil.Stash
	gattActor       *actor.PID
	mqttActor       *actor.PID
	gattActorOnline bool
	mqttActorOnline bool
	healthyRecv     int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, gattActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		gattActor: gattActor,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		state.healthyRecv = 0
		state.gattActorOnline = false
		state.mqttActorOnline = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gattActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_GATT,
				Healthy: false,
			}
		})
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_GATT:
				state.gattActorOnline = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorOnline = true
			}
		}
		if state.healthyRecv == 2 {
			if state.gattActorOnline && state.mqttActorOnline {
				state.publishDiscovery(ctx)
				state.behavior.Become(state.Done)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT actor or GATT actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context) {
	mac := state.config.Device.MAC
	device := events.MamarooDevice(mac, state.config.Device.Serial)

	switches := []domain.GenericSwitch{events.PowerSwitch(device, mac)}
	selects := []domain.GenericSelect{
		events.ModeSelect(device, mac),
		events.SpeedSelect(device, mac),
	}

	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Switches: switches,
		Selects:  selects,
	})
}
