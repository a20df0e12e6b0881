package push

import "context"

// PushConnection represents one open push stream to one receiver, regardless
// of transport (SSE, WebSocket, etc.).
type PushConnection interface {
	// ID is the unique connection identifier.
	ID() string
	// ReceiverID is the identity the connection delivers to.
	ReceiverID() string
	// Transport names the wire transport ("sse", "websocket").
	Transport() string
	// Push writes one frame to the client. A returned error is terminal for
	// the connection: the caller closes and deregisters it.
	Push(frame *Frame) error
	Close() error
	IsClosed() bool
	// Context is cancelled when the connection closes for any reason.
	Context() context.Context
}
