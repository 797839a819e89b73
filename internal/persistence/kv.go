// Package persistence provides the durable key-value medium behind the chat
// state store, with Redis and Postgres backends plus an in-memory one for
// tests. The store writes whole collections per key; readers tolerate
// malformed or missing values by falling back to empty collections.
package persistence

import "context"

// Keys of the support-chat durable medium.
const (
	KeyTickets = "support:tickets"
	KeyLeads   = "support:leads"
	KeyLeadSeq = "support:lead_seq"

	// SessionKeyPrefix namespaces per-visitor lead-session bindings.
	SessionKeyPrefix = "support:session:"

	// BlobKeyPrefix namespaces attachment payloads.
	BlobKeyPrefix = "support:blob:"
)

// KV is the durable key-value medium. Get returns (nil, nil) for an absent
// key; Incr atomically bumps and returns an integer counter.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Incr(ctx context.Context, key string) (int64, error)
	Close() error
}

// Notifier announces key changes across processes. Publish carries the
// writing process's origin id so subscribers can skip their own writes;
// Subscribe returns a cancel function.
type Notifier interface {
	Publish(ctx context.Context, key, origin string) error
	Subscribe(ctx context.Context, fn func(key, origin string)) (func(), error)
}
