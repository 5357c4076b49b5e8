package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRef aliases a protoactor PID so request messages can carry a reply
// address without every domain type importing the actor package.
type ActorRef actor.PID

// ActorRequestMixIn embeds into request messages. ReplyToRef overrides the
// implicit sender; when nil, responders fall back to ctx.Sender().
type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

// ActorResponseMixIn embeds into response messages. A nil ResponseError
// means the request was served.
type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
