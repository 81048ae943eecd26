package streamapi

import (
	"context"
	"time"
)

// Transport is the wire-level interface to the stream service. *Client
// implements it over HTTP; tests substitute in-memory fakes. BufferedProducer
// and Consumer are built on top of it.
type Transport interface {
	// CreateStream creates a stream with the given replication factor and
	// backlog retention.
	CreateStream(ctx context.Context, spec StreamSpec) error

	// DeleteStream removes a stream and its backlog.
	DeleteStream(ctx context.Context, name string) error

	// ListStreams returns all streams known to the service.
	ListStreams(ctx context.Context) ([]StreamInfo, error)

	// CreateSubscription creates a named consumption group on a stream.
	CreateSubscription(ctx context.Context, spec SubscriptionSpec) error

	// DeleteSubscription removes a subscription.
	DeleteSubscription(ctx context.Context, id string) error

	// Append writes a batch of records to a stream and returns one record ID
	// per record, in order. A batch either lands entirely or fails entirely.
	Append(ctx context.Context, stream string, records []Record) ([]string, error)

	// Fetch long-polls a subscription for up to maxRecords records, waiting
	// at most wait before returning an empty batch. The service delivers any
	// record to at most one live fetcher at a time.
	Fetch(ctx context.Context, subscription string, maxRecords int, wait time.Duration) ([]ReceivedRecord, error)

	// Ack acknowledges delivered records by ID. Unacknowledged records are
	// redelivered after the subscription's ack timeout.
	Ack(ctx context.Context, subscription string, recordIDs []string) error
}
