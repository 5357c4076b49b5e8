package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "mamaroo2mqtt/internal/adapter/actor"
	"mamaroo2mqtt/internal/config"
	"mamaroo2mqtt/internal/core/actor"
	"mamaroo2mqtt/internal/server"
	"mamaroo2mqtt/internal/util/actorutil"
	"mamaroo2mqtt/pkg/mamaroo"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// a stale bluez connection from a previous run blocks the new one
	if err := mamaroo.ForceDisconnect(cfg.Device.MAC, 5*time.Second); err != nil {
		logger.Debug("bluetoothctl cleanup failed", zap.Error(err))
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// children that exhaust their supervised restarts are reported here
	fatal := make(chan error, 1)

	// the strategy on these Props governs the bridge's children, so the
	// restart bound has to be attached here and not on the children's Props
	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewBridgeActor(*cfg, gattActorProvider(cfg, logger), mqttActorProvider(cfg, logger), fatal, logger)
	}, pactor.WithSupervisor(actor.BridgeSupervisorStrategy(*cfg)))
	pid, err := ctx.SpawnNamed(props, "bridge")
	if err != nil {
		logger.Error("could not spawn bridge actor", zap.Error(err))
		os.Exit(1)
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	select {
	case err := <-fatal:
		logger.Error("bridge failed", zap.Error(err))
		ctx.Stop(pid)
		as.Shutdown()
		os.Exit(1)
	case <-done:
		log.Println("Graceful shutdown complete.")
		ctx.Stop(pid)
		as.Shutdown()
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => MAMAROO_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("MAMAROO_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("mamaroo")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix device MAC
	mac, err := config.CheckDeviceMAC(cfg.Device.MAC)
	if err != nil {
		return nil, errors.New("config param device.mac must be a MAC address like AA:BB:CC:DD:EE:FF")
	}
	cfg.Device.MAC = mac

	// check and fix homeassistant discovery topic
	prefix, err := config.CheckMQTTTopic(cfg.MQTT.DiscoveryPrefix)
	if err != nil {
		return nil, errors.New("invalid discovery prefix. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.DiscoveryPrefix = prefix

	// check bounds
	if cfg.Bridge.ConnectTimeoutMillis < 1000 {
		return nil, errors.New("config param bridge.connect_timeout_millis should be >= 1000")
	}
	if cfg.Bridge.WriteTimeoutMillis < 100 {
		return nil, errors.New("config param bridge.write_timeout_millis should be >= 100")
	}
	if cfg.Bridge.KeepAliveIntervalMillis < 1000 {
		return nil, errors.New("config param bridge.keep_alive_interval_millis should be >= 1000")
	}
	if cfg.Bridge.MaxConnectAttempts == 0 {
		return nil, errors.New("config param bridge.max_connect_attempts should be > 0")
	}

	return &cfg, nil
}

func gattActorProvider(cfg *config.Config, logger *zap.Logger) actor.GattActorProvider {
	return func(es *eventstream.EventStream) *adactor.GattActor {
		link := mamaroo.NewLink(cfg.Device.MAC, time.Duration(cfg.Bridge.ConnectTimeoutMillis)*time.Millisecond)
		return adactor.NewGattActor(cfg, link, es, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.discovery_prefix", "homeassistant")
	viper.SetDefault("bridge.connect_timeout_millis", 20000)
	viper.SetDefault("bridge.write_timeout_millis", 2000)
	viper.SetDefault("bridge.keep_alive_interval_millis", 5000)
	viper.SetDefault("bridge.max_connect_attempts", 10)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
