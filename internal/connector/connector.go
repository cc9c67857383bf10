// Package connector holds the per-channel source adapters. Each adapter
// normalizes its platform's payloads into the canonical message shape and
// reports fetch failures as errors the pipeline can isolate per source.
package connector

import (
	"context"

	"github.com/adilet/commhub/internal/message"
)

// Connector retrieves messages from one communication channel.
type Connector interface {
	// Name returns the connector name for logging and status tracking.
	Name() string

	// Source returns the canonical source identifier for messages this
	// connector produces.
	Source() message.Source

	// FetchMessages retrieves the recent messages of the channel as canonical
	// records. An error means the whole fetch for this source failed; the
	// caller proceeds with the other sources.
	FetchMessages(ctx context.Context) ([]*message.Message, error)
}

// ReplySender is implemented by connectors that can send a reply on their
// channel. Channels without a reachable reply path simply don't implement it.
type ReplySender interface {
	SendReply(ctx context.Context, recipient, subject, body string) error
}

// base provides the Name/Source boilerplate shared by all adapters.
type base struct {
	name   string
	source message.Source
}

func newBase(name string, source message.Source) base {
	return base{name: name, source: source}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Source() message.Source {
	return b.source
}
