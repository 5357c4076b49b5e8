package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"mamaroo2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "1"
	MQTT_PAYLOAD_OFF     = "0"

	COMPONENT_SWITCH = "switch"
	COMPONENT_SELECT = "select"

	FIELD_POWER = "power"
	FIELD_MODE  = "mode"
	FIELD_SPEED = "speed"

	deviceClass = "mamaroo"
)

// TopicDeviceId encodes a MAC-like device identity into its topic form
// (colons become underscores, MQTT topics cannot carry ':').
func TopicDeviceId(mac string) string {
	return strings.ReplaceAll(mac, ":", "_")
}

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("mamaroo2mqtt_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	// the broker delivers "offline" if the bridge disappears uncleanly
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = availabilityTopic(cfg.MQTT.DiscoveryPrefix, TopicDeviceId(cfg.Device.MAC))
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:        mqtt.NewClient(opts),
		prefix:        cfg.MQTT.DiscoveryPrefix,
		deviceId:      cfg.Device.MAC,
		topicDeviceId: TopicDeviceId(cfg.Device.MAC),
		commandRegexp: commandExtractor(cfg.MQTT.DiscoveryPrefix),
	}
}

type MQTTClient struct {
	client        mqtt.Client
	prefix        string
	deviceId      string
	topicDeviceId string
	commandRegexp *regexp.Regexp
}

// ParsedMQTTCommand is an inbound command routed to one of the device's
// writable fields, identity already verified.
type ParsedMQTTCommand struct {
	Field   string
	Payload string
}

var errIgnoreTopic = errors.New("topic not addressed to this device")

// IsIgnore reports whether a parse error means "not ours" rather than a
// malformed command. Multiple devices may share a broker, so these are
// dropped silently.
func IsIgnore(err error) bool {
	return errors.Is(err, errIgnoreTopic)
}

// ParseMQTTCommand routes a message from the command wildcard topic.
// Topic shape: <prefix>/<component>/mamaroo/<id>[-<field>]/command.
func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	matches := c.commandRegexp.FindAllStringSubmatch(msg.Topic(), 1)
	if len(matches) == 0 || len(matches[0]) != 4 {
		return nil, errIgnoreTopic
	}
	component := matches[0][1]
	entityId := matches[0][2]
	field := matches[0][3]

	// reverse the colon-to-underscore encoding and reject other identities
	if !strings.EqualFold(strings.ReplaceAll(entityId, "_", ":"), c.deviceId) {
		return nil, errIgnoreTopic
	}

	switch {
	case component == COMPONENT_SWITCH && field == "":
		return &ParsedMQTTCommand{Field: FIELD_POWER, Payload: string(msg.Payload())}, nil
	case component == COMPONENT_SELECT && (field == FIELD_MODE || field == FIELD_SPEED):
		return &ParsedMQTTCommand{Field: field, Payload: string(msg.Payload())}, nil
	}
	return nil, errIgnoreTopic
}

func (c *MQTTClient) switchBaseTopic() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.prefix, COMPONENT_SWITCH, deviceClass, c.topicDeviceId)
}

func (c *MQTTClient) selectBaseTopic(field string) string {
	return fmt.Sprintf("%s/%s/%s/%s-%s", c.prefix, COMPONENT_SELECT, deviceClass, c.topicDeviceId, field)
}

func (c *MQTTClient) SwitchStateTopic() string {
	return c.switchBaseTopic() + "/state"
}

func (c *MQTTClient) SwitchCommandTopic() string {
	return c.switchBaseTopic() + "/command"
}

func (c *MQTTClient) SwitchConfigTopic() string {
	return c.switchBaseTopic() + "/config"
}

func (c *MQTTClient) AvailabilityTopic() string {
	return availabilityTopic(c.prefix, c.topicDeviceId)
}

func (c *MQTTClient) SelectStateTopic(field string) string {
	return c.selectBaseTopic(field) + "/state"
}

func (c *MQTTClient) SelectCommandTopic(field string) string {
	return c.selectBaseTopic(field) + "/command"
}

func (c *MQTTClient) SelectConfigTopic(field string) string {
	return c.selectBaseTopic(field) + "/config"
}

func (c *MQTTClient) CommandWildcardTopic() string {
	return fmt.Sprintf("%s/+/%s/+/command", c.prefix, deviceClass)
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.CommandWildcardTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func availabilityTopic(prefix, topicDeviceId string) string {
	return fmt.Sprintf("%s/%s/%s/%s/availability", prefix, COMPONENT_SWITCH, deviceClass, topicDeviceId)
}

func commandExtractor(prefix string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/([a-z_]+)/%s/([a-zA-Z0-9_]+)(?:-([a-z]+))?/command$", prefix, deviceClass))
}
