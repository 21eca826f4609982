// Package feed delivers "the pin collection changed" signals from the remote
// store to live subscribers. Events carry no payload: subscribers re-read the
// full collection.
package feed

import "context"

// Ops reported by feeds. Postgres reports the lower-cased trigger operation.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpResync = "resync"
)

// Event is one change notification. A non-nil Err reports a feed failure; the
// feed keeps running after reporting it.
type Event struct {
	Op  string
	Err error
}

// ChangeFeed streams change events until ctx ends, then closes the channel.
type ChangeFeed interface {
	Watch(ctx context.Context) <-chan Event
}
