package commands

import (
	"context"
	"errors"
)

// Command is a validated intent, either decoded from a realtime frame or
// built by a REST handler.
type Command interface {
	CommandType() string
	Validate() error
}

type Result struct {
	AggregateID string
	Payload     interface{}
}

type Handler interface {
	Handle(ctx context.Context, cmd Command) (Result, error)
}

type HandlerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

var ErrHandlerNotFound = errors.New("handler not found")
