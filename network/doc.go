// Package network provides the transport layer for sessions: ordered,
// bidirectional byte-frame channels over TCP or WebSocket, plus an
// in-process pipe for same-process peers and tests.
//
// A Channel carries opaque frames in order and reports closure through
// Done. Framing, heartbeats and connection state are handled here; the
// payload format is the concern of the codec package.
package network
