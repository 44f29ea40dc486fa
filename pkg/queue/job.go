package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// Job handles messages of one type.
type Job interface {
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// ErrPermanent marks a failure that retrying cannot fix. Wrap it to send a
// message straight to the dead letter list.
var ErrPermanent = errors.New("permanent job failure")

// JobFunc adapts a function to Job.
type JobFunc struct {
	Name string
	Fn   func(ctx context.Context, payload json.RawMessage) error
}

func (j JobFunc) Type() string { return j.Name }

func (j JobFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return j.Fn(ctx, payload)
}
