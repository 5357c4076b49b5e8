package mqtt

import (
	"mamaroo2mqtt/internal/core/domain"
)

// Home Assistant MQTT discovery schema. Field names and JSON layout must
// stay compatible with the published schema; external consumers parse these
// payloads verbatim.

type HADiscoveryConfig struct {
	Device       HADiscoveryDevice `json:"device"`
	Name         string            `json:"name"`
	UniqueId     string            `json:"unique_id"`
	StateTopic   string            `json:"state_topic"`
	CommandTopic string            `json:"command_topic,omitempty"`
	AvTopic      string            `json:"availability_topic,omitempty"`
	PayloadOn    string            `json:"payload_on,omitempty"`
	PayloadOff   string            `json:"payload_off,omitempty"`
	Options      []string          `json:"options,omitempty"`
	Icon         string            `json:"icon,omitempty"`
	Platform     string            `json:"platform"`
}

type HADiscoveryDevice struct {
	Id           []string    `json:"identifiers"`
	Connections  [][2]string `json:"connections,omitempty"`
	Manufacturer string      `json:"manufacturer,omitempty"`
	Version      string      `json:"sw_version,omitempty"`
	Model        string      `json:"model,omitempty"`
	Name         string      `json:"name,omitempty"`
}

func GenericSwitchToHADiscoveryMessage(client *MQTTClient, _switch domain.GenericSwitch) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(_switch.Device),
		Name:         _switch.Name,
		UniqueId:     _switch.UniqueId,
		StateTopic:   client.SwitchStateTopic(),
		CommandTopic: client.SwitchCommandTopic(),
		AvTopic:      client.AvailabilityTopic(),
		PayloadOn:    MQTT_PAYLOAD_ON,
		PayloadOff:   MQTT_PAYLOAD_OFF,
		Icon:         _switch.Icon,
		Platform:     "mqtt",
	}
}

func GenericSelectToHADiscoveryMessage(client *MQTTClient, sel domain.GenericSelect) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(sel.Device),
		Name:         sel.Name,
		UniqueId:     sel.UniqueId,
		StateTopic:   client.SelectStateTopic(sel.Field),
		CommandTopic: client.SelectCommandTopic(sel.Field),
		Options:      sel.Options,
		Icon:         sel.Icon,
		Platform:     "mqtt",
	}
}

func HADiscoverySwitchTopic(client *MQTTClient) string {
	return client.SwitchConfigTopic()
}

func HADiscoverySelectTopic(client *MQTTClient, sel domain.GenericSelect) string {
	return client.SelectConfigTopic(sel.Field)
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           d.Identifiers,
		Connections:  d.Connections,
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
	}
}
