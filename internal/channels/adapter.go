// Package channels contains the delivery adapters and the per-tier fan-out
// registry. The routing engine treats every adapter as a black box that
// either acknowledges a send or fails; adapter-internal retries and errors
// are the adapter's own concern.
package channels

import "context"

// Adapter transmits one rendered message on a single delivery channel.
type Adapter interface {
	// Name identifies the channel, e.g. "telegram".
	Name() string

	// Send transmits the rendered text. A nil return is the only
	// acknowledgement the engine acts on.
	Send(ctx context.Context, text string) error
}
