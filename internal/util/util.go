package util

import (
	"mamaroo2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Device: config.DeviceConfig{
			MAC: "AA:BB:CC:DD:EE:FF",
		},
		MQTT: config.MQTTConfig{
			Host:            "localhost",
			Port:            1883,
			DiscoveryPrefix: "homeassistant",
		},
		Bridge: config.BridgeConfig{
			ConnectTimeoutMillis:    10000,
			WriteTimeoutMillis:      2000,
			KeepAliveIntervalMillis: 5000,
			MaxConnectAttempts:      4,
		},
		Port: 8080,
	}
}
