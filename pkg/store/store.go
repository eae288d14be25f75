// Package store provides the single-table key-value persistence layer.
//
// All entities live in one logical table addressed by a composite (PK, SK)
// key, with two secondary indices: GSI1 for entity-id lookups irrespective of
// partition, GSI2 for job listings by status. Items carry their entity as a
// JSON attribute blob plus an optimistic-concurrency version; conditional
// writes (the analysis gate, additive merges) are expressed as versioned
// updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no item exists under the given key.
	ErrNotFound = errors.New("item not found")

	// ErrConditionFailed is returned when a conditional write loses: the item
	// already exists (PutIfAbsent) or the expected version did not match.
	ErrConditionFailed = errors.New("conditional write failed")
)

// Item is one row of the logical table.
type Item struct {
	PK        string
	SK        string
	GSI1PK    string
	GSI1SK    string
	GSI2PK    string
	GSI2SK    string
	Attrs     json.RawMessage
	Version   int64
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unmarshal decodes the item's attribute blob into v.
func (it *Item) Unmarshal(v any) error {
	if err := json.Unmarshal(it.Attrs, v); err != nil {
		return fmt.Errorf("decode item %s/%s: %w", it.PK, it.SK, err)
	}
	return nil
}

// NewItem builds an item with a marshalled attribute blob.
func NewItem(pk, sk string, v any) (*Item, error) {
	attrs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode item %s/%s: %w", pk, sk, err)
	}
	return &Item{PK: pk, SK: sk, Attrs: attrs}, nil
}

// Store is the key-value persistence contract. Implementations must apply
// writes atomically per item and honor version conditions.
type Store interface {
	// Get returns the item under (pk, sk), or ErrNotFound. Expired items are
	// treated as absent.
	Get(ctx context.Context, pk, sk string) (*Item, error)

	// Put unconditionally upserts the item. On insert the stored version is 1;
	// on overwrite it increments.
	Put(ctx context.Context, item *Item) error

	// PutIfAbsent inserts the item only when no live item exists under its
	// key; otherwise ErrConditionFailed.
	PutIfAbsent(ctx context.Context, item *Item) error

	// UpdateVersioned overwrites the item only when the stored version equals
	// expected; otherwise ErrConditionFailed (or ErrNotFound when absent).
	UpdateVersioned(ctx context.Context, item *Item, expected int64) error

	// Query returns live items in a partition whose SK begins with skPrefix,
	// ordered by SK ascending. An empty prefix returns the whole partition.
	Query(ctx context.Context, pk, skPrefix string) ([]*Item, error)

	// QueryGSI1 queries the first secondary index.
	QueryGSI1(ctx context.Context, gsi1pk, gsi1skPrefix string) ([]*Item, error)

	// QueryGSI2 queries the second secondary index, ordered by GSI2SK.
	QueryGSI2(ctx context.Context, gsi2pk, gsi2skPrefix string) ([]*Item, error)

	// Delete removes the item under (pk, sk). Deleting an absent item is not
	// an error.
	Delete(ctx context.Context, pk, sk string) error

	// Close releases the underlying resources.
	Close() error
}
