package mqtt

import (
	"testing"

	"mamaroo2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
)

func testClient() *MQTTClient {
	cfg := config.Config{
		Device: config.DeviceConfig{
			MAC: "AA:BB:CC:DD:EE:FF",
		},
		MQTT: config.MQTTConfig{
			Host:            "localhost",
			Port:            1883,
			DiscoveryPrefix: "homeassistant",
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

type fakeMessage struct {
	topic   string
	payload string
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m fakeMessage) Ack()              {}

func TestTopicLayout(t *testing.T) {
	client := testClient()

	assert.Equal(t, "homeassistant/switch/mamaroo/AA_BB_CC_DD_EE_FF/state", client.SwitchStateTopic())
	assert.Equal(t, "homeassistant/switch/mamaroo/AA_BB_CC_DD_EE_FF/command", client.SwitchCommandTopic())
	assert.Equal(t, "homeassistant/switch/mamaroo/AA_BB_CC_DD_EE_FF/config", client.SwitchConfigTopic())
	assert.Equal(t, "homeassistant/switch/mamaroo/AA_BB_CC_DD_EE_FF/availability", client.AvailabilityTopic())
	assert.Equal(t, "homeassistant/select/mamaroo/AA_BB_CC_DD_EE_FF-mode/state", client.SelectStateTopic(FIELD_MODE))
	assert.Equal(t, "homeassistant/select/mamaroo/AA_BB_CC_DD_EE_FF-speed/command", client.SelectCommandTopic(FIELD_SPEED))
	assert.Equal(t, "homeassistant/+/mamaroo/+/command", client.CommandWildcardTopic())
}

func TestParseSwitchCommand(t *testing.T) {
	client := testClient()

	cmd, err := client.ParseMQTTCommand(fakeMessage{
		topic:   "homeassistant/switch/mamaroo/AA_BB_CC_DD_EE_FF/command",
		payload: "1",
	})
	assert.NoError(t, err)
	assert.Equal(t, FIELD_POWER, cmd.Field)
	assert.Equal(t, "1", cmd.Payload)
}

func TestParseSelectCommands(t *testing.T) {
	client := testClient()

	cmd, err := client.ParseMQTTCommand(fakeMessage{
		topic:   "homeassistant/select/mamaroo/AA_BB_CC_DD_EE_FF-mode/command",
		payload: "Kangaroo",
	})
	assert.NoError(t, err)
	assert.Equal(t, FIELD_MODE, cmd.Field)
	assert.Equal(t, "Kangaroo", cmd.Payload)

	cmd, err = client.ParseMQTTCommand(fakeMessage{
		topic:   "homeassistant/select/mamaroo/AA_BB_CC_DD_EE_FF-speed/command",
		payload: "3",
	})
	assert.NoError(t, err)
	assert.Equal(t, FIELD_SPEED, cmd.Field)
	assert.Equal(t, "3", cmd.Payload)
}

func TestParseCommandIgnoresOtherDevices(t *testing.T) {
	client := testClient()

	// same topic shape, different MAC
	_, err := client.ParseMQTTCommand(fakeMessage{
		topic:   "homeassistant/switch/mamaroo/11_22_33_44_55_66/command",
		payload: "1",
	})
	assert.Error(t, err)
	assert.True(t, IsIgnore(err))

	_, err = client.ParseMQTTCommand(fakeMessage{
		topic:   "homeassistant/select/mamaroo/11_22_33_44_55_66-speed/command",
		payload: "3",
	})
	assert.Error(t, err)
	assert.True(t, IsIgnore(err))
}

func TestParseCommandIgnoresUnknownShapes(t *testing.T) {
	client := testClient()

	cases := []string{
		"homeassistant/switch/mamaroo/AA_BB_CC_DD_EE_FF/state",
		"homeassistant/light/mamaroo/AA_BB_CC_DD_EE_FF/command",
		"homeassistant/select/mamaroo/AA_BB_CC_DD_EE_FF-volume/command",
		"other/switch/mamaroo/AA_BB_CC_DD_EE_FF/command",
	}
	for _, topic := range cases {
		_, err := client.ParseMQTTCommand(fakeMessage{topic: topic, payload: "1"})
		assert.Error(t, err, topic)
		assert.True(t, IsIgnore(err), topic)
	}
}

func TestParseCommandIsCaseInsensitiveOnMAC(t *testing.T) {
	client := testClient()

	cmd, err := client.ParseMQTTCommand(fakeMessage{
		topic:   "homeassistant/switch/mamaroo/aa_bb_cc_dd_ee_ff/command",
		payload: "0",
	})
	assert.NoError(t, err)
	assert.Equal(t, FIELD_POWER, cmd.Field)
}

func TestTopicDeviceId(t *testing.T) {
	assert.Equal(t, "AA_BB_CC_DD_EE_FF", TopicDeviceId("AA:BB:CC:DD:EE:FF"))
}
