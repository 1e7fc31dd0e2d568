// Package event defines the batch lifecycle events and the publishing
// contract between the batch store and downstream consumers.
package event

import "context"

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// PublisherFunc adapts a plain function to the Publisher interface.
type PublisherFunc func(ctx context.Context, evt DomainEvent)

func (f PublisherFunc) Publish(ctx context.Context, evt DomainEvent) { f(ctx, evt) }

// Discard drops every event. It is the default publisher of a store.
var Discard Publisher = PublisherFunc(func(context.Context, DomainEvent) {})
