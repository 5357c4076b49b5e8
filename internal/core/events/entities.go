package events

import (
	"fmt"
	"strings"

	"mamaroo2mqtt/internal/core/domain"
	"mamaroo2mqtt/pkg/mamaroo"

	"github.com/carlmjohnson/versioninfo"
)

const (
	ENTITY_ID_SWITCH = "switch"
	ENTITY_ID_MODE   = "mode"
	ENTITY_ID_SPEED  = "speed"

	ICON_SWITCH = "mdi:rocket-launch"
	ICON_SPEED  = "mdi:speedometer"
)

// MamarooDevice builds the discovery device block. The serial number is an
// optional extra identifier next to the MAC.
func MamarooDevice(mac, serial string) domain.Device {
	identifiers := []string{mac}
	if serial != "" {
		identifiers = append(identifiers, serial)
	}
	return domain.Device{
		Identifiers:  identifiers,
		Connections:  [][2]string{{"mac", mac}},
		Name:         "mamaroo4 infant seat",
		Manufacturer: "4moms",
		Model:        "mamaRoo4",
		Version:      versioninfo.Short(),
	}
}

func PowerSwitch(device domain.Device, mac string) domain.GenericSwitch {
	return domain.GenericSwitch{
		Device:   device,
		Id:       ENTITY_ID_SWITCH,
		Name:     fmt.Sprintf("Mamaroo %s Switch", mac),
		UniqueId: uniqueId(mac, ENTITY_ID_SWITCH),
		Icon:     ICON_SWITCH,
	}
}

func ModeSelect(device domain.Device, mac string) domain.GenericSelect {
	return domain.GenericSelect{
		Device:   device,
		Id:       ENTITY_ID_MODE,
		Field:    "mode",
		Name:     fmt.Sprintf("Mamaroo %s Mode", mac),
		UniqueId: uniqueId(mac, ENTITY_ID_MODE),
		Options:  mamaroo.ModeNames(),
	}
}

func SpeedSelect(device domain.Device, mac string) domain.GenericSelect {
	return domain.GenericSelect{
		Device:   device,
		Id:       ENTITY_ID_SPEED,
		Field:    "speed",
		Name:     fmt.Sprintf("Mamaroo %s Speed", mac),
		UniqueId: uniqueId(mac, ENTITY_ID_SPEED),
		Icon:     ICON_SPEED,
		Options:  []string{"0", "1", "2", "3", "4", "5"},
	}
}

func uniqueId(mac, entity string) string {
	return fmt.Sprintf("mamaroo-%s-%s", strings.ToLower(strings.ReplaceAll(mac, ":", "-")), entity)
}
