// Package messaging defines the queue abstraction the event service
// publishes through. Implementations live in the memory and fs
// sub-packages.
package messaging

import "context"

// Vendor names a queue implementation.
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFS     Vendor = "fs"
)

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a message carrying t to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message. In-process implementations
	// block until one is available or ctx is done; polling transports may
	// return (nil, nil) when nothing is pending.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a consumed queue entry awaiting acknowledgement.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack acknowledges successful processing.
	Ack() error

	// Nack reports failed processing; the queue may keep the message for
	// inspection.
	Nack(err error) error
}
