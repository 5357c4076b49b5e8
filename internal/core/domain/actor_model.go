package domain

import "mamaroo2mqtt/pkg/mamaroo"

const (
	ACTOR_ID_BRIDGE       = "bridge"
	ACTOR_ID_GATT         = "gatt"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// GattWriteRequest asks the GATT actor to apply one translated command as a
// sequence of writes. Frames are written strictly in order; the first
// failing write abandons the rest of the sequence.
type GattWriteRequest struct {
	ActorRequestMixIn
	Frames []mamaroo.WriteFrame
}

type GattWriteResponse struct {
	ActorResponseMixIn
	// FramesWritten counts writes acknowledged before a failure, so partial
	// application is visible in logs.
	FramesWritten int
}

// GattReplayRequest asks the GATT actor to republish the last accepted
// state and the online availability. Sent whenever the MQTT session
// (re)subscribes, so events published while no session was listening are
// not lost for good.
type GattReplayRequest struct {
	ActorRequestMixIn
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Switches []GenericSwitch
	Selects  []GenericSelect
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
