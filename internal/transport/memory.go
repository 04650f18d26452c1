package transport

import (
	"sync"

	"github.com/scout-project/scout/internal/netaddr"
)

// Network is an in-memory datagram fabric for tests: endpoints attach at
// an address, sends enqueue, and Pump delivers. Queued delivery mirrors
// the real transport, where a reply never arrives inside the send call.
// A loss rule can drop traffic to simulate dead masters or lossy links.
type Network struct {
	mu    sync.Mutex
	nodes map[netaddr.Addr]Handler
	queue []datagram
	loss  func(from, to netaddr.Addr) bool
}

type datagram struct {
	from    netaddr.Addr
	to      netaddr.Addr
	payload []byte
}

// NewNetwork creates an empty fabric.
func NewNetwork() *Network {
	return &Network{nodes: make(map[netaddr.Addr]Handler)}
}

// SetLoss installs a drop rule; return true to discard the datagram.
func (n *Network) SetLoss(rule func(from, to netaddr.Addr) bool) {
	n.mu.Lock()
	n.loss = rule
	n.mu.Unlock()
}

// Attach registers an endpoint and returns its Conn.
func (n *Network) Attach(addr netaddr.Addr, handler Handler) *MemConn {
	n.mu.Lock()
	n.nodes[addr] = handler
	n.mu.Unlock()
	return &MemConn{net: n, local: addr}
}

// Pump delivers queued datagrams, including any enqueued by handlers
// during delivery, until the queue drains. Returns the delivery count.
func (n *Network) Pump() int {
	delivered := 0
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return delivered
		}
		d := n.queue[0]
		n.queue = n.queue[1:]
		handler := n.nodes[d.to]
		n.mu.Unlock()

		if handler != nil {
			handler(d.from, d.payload)
		}
		delivered++
	}
}

// MemConn is one endpoint of the in-memory fabric.
type MemConn struct {
	net   *Network
	local netaddr.Addr
}

// Send enqueues the datagram. Broadcast addresses fan out to every
// endpoint on the destination port except the sender.
func (c *MemConn) Send(to netaddr.Addr, payload []byte) error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	enqueue := func(target netaddr.Addr) {
		if c.net.loss != nil && c.net.loss(c.local, target) {
			return
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		c.net.queue = append(c.net.queue, datagram{from: c.local, to: target, payload: data})
	}

	if to.IsBroadcast() {
		for addr := range c.net.nodes {
			if addr.Port == to.Port && addr != c.local {
				enqueue(addr)
			}
		}
	} else if _, ok := c.net.nodes[to]; ok {
		enqueue(to)
	}
	return nil
}

// Close detaches the endpoint.
func (c *MemConn) Close() error {
	c.net.mu.Lock()
	delete(c.net.nodes, c.local)
	c.net.mu.Unlock()
	return nil
}
