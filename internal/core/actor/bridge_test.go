package actor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	adactor "mamaroo2mqtt/internal/adapter/actor"
	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/internal/mqtt"
	"mamaroo2mqtt/internal/util"
	"mamaroo2mqtt/pkg/mamaroo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func spawnBridgeActor(t *testing.T) (*actor.ActorSystem, *actor.PID, *mamaroo.TestGattLink) {
	t.Helper()

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	link := mamaroo.NewTestGattLink()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBridgeActor(cfg, func(es *eventstream.EventStream) *adactor.GattActor {
			return adactor.NewGattActor(&cfg, link, es, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, nil, logger)
	}, actor.WithSupervisor(BridgeSupervisorStrategy(cfg)))
	pid, err := context.SpawnNamed(props, "bridge")
	if err != nil {
		t.Fatal(err)
	}

	return as, pid, link
}

func TestBridgeActorSignalsFatalAfterBoundedConnectAttempts(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	cfg.Bridge.MaxConnectAttempts = 2
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	link := mamaroo.NewTestGattLink()
	link.ConnectErr = errors.New("device unreachable")

	fatal := make(chan error, 1)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBridgeActor(cfg, func(es *eventstream.EventStream) *adactor.GattActor {
			return adactor.NewGattActor(&cfg, link, es, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, fatal, logger)
	}, actor.WithSupervisor(BridgeSupervisorStrategy(cfg)))
	pid, err := context.SpawnNamed(props, "bridge")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-fatal:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Error("bridge never reported the unreachable device as fatal")
	}

	// initial attempt plus MaxConnectAttempts supervised restarts
	assert.Equal(t, 3, link.ConnectCalls())

	context.Stop(pid)
}

func TestBridgeActorHealthCheck(t *testing.T) {

	as, pid, _ := spawnBridgeActor(t)
	defer as.Shutdown()
	context := as.Root

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	context.Stop(pid)
}

func TestBridgeActorTranslatesSpeedCommand(t *testing.T) {

	as, pid, link := spawnBridgeActor(t)
	defer as.Shutdown()
	context := as.Root

	time.Sleep(2 * time.Second)

	context.Send(pid, adactor.ParsedCommand{
		Command: &mqtt.ParsedMQTTCommand{Field: "speed", Payload: "3"},
	})

	time.Sleep(1 * time.Second)

	assert.Equal(t, []mamaroo.WriteFrame{
		mamaroo.EncodePower(true),
		mamaroo.EncodeSpeed(3),
		mamaroo.EncodeMove(true),
	}, link.Frames())

	context.Stop(pid)
}

func TestBridgeActorTranslatesPowerAndModeCommands(t *testing.T) {

	as, pid, link := spawnBridgeActor(t)
	defer as.Shutdown()
	context := as.Root

	time.Sleep(2 * time.Second)

	context.Send(pid, adactor.ParsedCommand{
		Command: &mqtt.ParsedMQTTCommand{Field: "power", Payload: "1"},
	})
	time.Sleep(500 * time.Millisecond)
	context.Send(pid, adactor.ParsedCommand{
		Command: &mqtt.ParsedMQTTCommand{Field: "mode", Payload: "Wave"},
	})

	time.Sleep(1 * time.Second)

	assert.Equal(t, []mamaroo.WriteFrame{
		mamaroo.EncodePower(true),
		mamaroo.EncodeMode(5),
	}, link.Frames())

	context.Stop(pid)
}

func TestBridgeActorDropsInvalidCommands(t *testing.T) {

	as, pid, link := spawnBridgeActor(t)
	defer as.Shutdown()
	context := as.Root

	time.Sleep(2 * time.Second)

	context.Send(pid, adactor.ParsedCommand{
		Command: &mqtt.ParsedMQTTCommand{Field: "mode", Payload: "Warp Drive"},
	})
	context.Send(pid, adactor.ParsedCommand{
		Command: &mqtt.ParsedMQTTCommand{Field: "speed", Payload: "fast"},
	})

	time.Sleep(1 * time.Second)

	assert.Empty(t, link.Frames())

	context.Stop(pid)
}
