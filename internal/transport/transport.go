// Package transport abstracts the connectionless datagram channel the
// discovery protocol runs over. Sends are non-blocking best-effort;
// receives are push-delivered to a handler by the transport's read loop.
package transport

import "github.com/scout-project/scout/internal/netaddr"

// Handler consumes inbound datagrams.
type Handler func(from netaddr.Addr, payload []byte)

// Conn is the datagram channel. A send failure is equivalent to a lost
// datagram; the caller's retry discipline covers it.
type Conn interface {
	Send(to netaddr.Addr, payload []byte) error
	Close() error
}
