package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Device   DeviceConfig `mapstructure:"device"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`
	Bridge   BridgeConfig `mapstructure:"bridge"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type DeviceConfig struct {
	// MAC is the stable identity of the one device this process bridges.
	// Immutable for the process lifetime.
	MAC    string `mapstructure:"mac"`
	Serial string `mapstructure:"serial"`
}

type MQTTConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

type BridgeConfig struct {
	ConnectTimeoutMillis    uint32 `mapstructure:"connect_timeout_millis"`
	WriteTimeoutMillis      uint32 `mapstructure:"write_timeout_millis"`
	KeepAliveIntervalMillis uint32 `mapstructure:"keep_alive_interval_millis"`
	// MaxConnectAttempts bounds supervised reconnects before the process
	// exits non-zero (crash-only recovery, external manager restarts us).
	MaxConnectAttempts uint `mapstructure:"max_connect_attempts"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

var macRegexp = regexp.MustCompile("^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$")

func CheckDeviceMAC(mac string) (string, error) {
	if !macRegexp.MatchString(mac) {
		return "", errors.New("invalid device MAC address")
	}
	return strings.ToUpper(mac), nil
}
