package store

import "time"

// Snapshot is the stored content of the build status element.
//
// Snapshot is the storage representation of a poll's display, shaped for JSON
// serialization (used by the REST API and SSE). The browser widget writes
// HTML into the element's inner HTML and Title into its title attribute.
type Snapshot struct {
	// Repository is the polled repository, "owner/name".
	Repository string `json:"repository"`

	// Text is the plain status message.
	Text string `json:"text"`

	// Link is the optional hyperlink target of the message.
	Link string `json:"link,omitempty"`

	// HTML is the rendered element content.
	HTML string `json:"html"`

	// Title is the "Last checked" tooltip.
	Title string `json:"title"`

	// State is the poller state after the poll ("idle" or "building").
	State string `json:"state"`

	// Final is true when no further update will follow.
	Final bool `json:"final"`

	// ResponseTimeMs is the total API latency of the poll in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// CheckedAt is the timestamp of the poll.
	CheckedAt time.Time `json:"checked_at"`
}

// Store defines the interface for storing and subscribing to status updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism pushes updates to connected clients via Server-Sent Events.
type Store interface {
	// Update replaces the stored snapshot and notifies all subscribers.
	Update(snapshot Snapshot)

	// Publish notifies all subscribers without replacing the stored snapshot.
	// It carries updates meant only for the pages connected right now.
	Publish(snapshot Snapshot)

	// Latest returns the most recent snapshot, and false if none was stored yet.
	Latest() (Snapshot, bool)

	// Subscribe returns a channel that receives snapshot updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
