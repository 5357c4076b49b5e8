package domain

// Device is the discovery device block shared by all exposed entities.
type Device struct {
	Identifiers  []string
	Connections  [][2]string
	Name         string
	Manufacturer string
	Model        string
	Version      string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

// GenericSelect is an enumerated option entity (HA "select" platform).
type GenericSelect struct {
	Device   Device
	Id       string
	Field    string
	Name     string
	UniqueId string
	Icon     string
	Options  []string
}
