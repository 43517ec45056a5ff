// Package journal records every resolved utterance: what was heard, what it
// normalized to, how it resolved and which move (if any) was played. The
// journal backs the MCP history tools and offline tuning of the normalizer
// vocabulary.
//
// Three stores exist: [MemStore] (bounded, in-process), [FileStore]
// (append-only JSON lines) and the PostgreSQL store in the postgres
// subpackage.
package journal

import (
	"context"
	"time"
)

// Entry is one journaled utterance.
type Entry struct {
	// Tab identifies the browser tab (session) the utterance came from.
	Tab string `json:"tab"`

	// Time is when the utterance was processed.
	Time time.Time `json:"time"`

	// Raw is the transcript as delivered by the recognizer.
	Raw string `json:"raw"`

	// Normalized is the normalizer output.
	Normalized string `json:"normalized"`

	// Outcome is the resolution outcome ("matched", "ambiguous", ...).
	Outcome string `json:"outcome"`

	// Strategy names the parser that produced the intent, if any.
	Strategy string `json:"strategy,omitempty"`

	// Intent is the rendered intent, if any.
	Intent string `json:"intent,omitempty"`

	// Move is the matched move in SAN or coordinate form, if any.
	Move string `json:"move,omitempty"`

	// Oracle names the oracle variant consulted.
	Oracle string `json:"oracle,omitempty"`

	// Latency is the time from transcript arrival to resolution.
	Latency time.Duration `json:"latency_ns"`
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	// Record appends e.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries for tab, newest last. An empty tab
	// matches every tab.
	Recent(ctx context.Context, tab string, limit int) ([]Entry, error)

	// Close releases the store's resources.
	Close() error
}
