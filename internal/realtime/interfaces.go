package realtime

import (
	"context"

	"github.com/richxcame/courier-dispatch/pkg/eventbus"
)

// Publisher is the slice of the event bus the gateway publishes through.
type Publisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

var _ Publisher = (*eventbus.Bus)(nil)
