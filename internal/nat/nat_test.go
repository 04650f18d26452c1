package nat

import (
	"testing"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/transport"
)

type recordedSink struct {
	candidates []netaddr.Addr
	isHost     bool
	relays     []netaddr.Addr
	rejections []string
	inviteHost netaddr.Addr
	inviteOK   bool
	isLocal    bool
}

func (s *recordedSink) ArrangedCandidates(candidates []netaddr.Addr, isHost bool) {
	s.candidates = candidates
	s.isHost = isHost
}
func (s *recordedSink) RelayReady(relay netaddr.Addr, isHost bool) {
	s.relays = append(s.relays, relay)
	s.isHost = isHost
}
func (s *recordedSink) ConnectionRejected(reason string) {
	s.rejections = append(s.rejections, reason)
}
func (s *recordedSink) InviteResult(found bool, host netaddr.Addr, isLocal bool) {
	s.inviteOK = found
	s.inviteHost = host
	s.isLocal = isLocal
}

var masterAddr = netaddr.Addr{IP: [4]byte{192, 0, 2, 1}, Port: 27950}
var selfAddr = netaddr.Addr{IP: [4]byte{10, 0, 0, 1}, Port: 28000}

func newClient(t *testing.T) (*Client, *recordedSink, *transport.Network, *counterNode) {
	t.Helper()
	cfg := &config.Config{
		Client: config.ClientData{
			Masters:   []string{"1:" + masterAddr.HostPort()},
			QueryPort: 28000,
		},
	}
	net := transport.NewNetwork()
	sink := &recordedSink{}
	c := New(cfg, nil, sink)
	conn := net.Attach(selfAddr, func(from netaddr.Addr, payload []byte) {
		r := codec.NewReader(payload)
		h, err := protocol.ReadHeader(r)
		if err != nil {
			return
		}
		c.HandleRequest(from, h, r)
	})
	c.SetConn(conn)
	master := attachCounter(net, masterAddr)
	return c, sink, net, master
}

type counterNode struct {
	received [][]byte
}

func attachCounter(net *transport.Network, addr netaddr.Addr) *counterNode {
	node := &counterNode{}
	net.Attach(addr, func(from netaddr.Addr, payload []byte) {
		node.received = append(node.received, payload)
	})
	return node
}

func (n *counterNode) typeCount(pktType uint8) int {
	count := 0
	for _, p := range n.received {
		if len(p) > 0 && p[0] == pktType {
			count++
		}
	}
	return count
}

func TestArrangeConnectionSendsToMasters(t *testing.T) {
	c, _, net, master := newClient(t)
	c.ArrangeConnection(netaddr.Addr{IP: [4]byte{203, 0, 113, 7}, Port: 28000})
	net.Pump()

	if master.typeCount(protocol.MasterServerRequestArrangedConnection) != 1 {
		t.Error("arranged connect request not sent to master")
	}
}

func TestOfferIsAcknowledgedAndSunk(t *testing.T) {
	_, sink, net, _ := newClient(t)

	offer := &protocol.ArrangedConnectOffer{
		ClientID: 9,
		Candidates: []netaddr.Addr{
			{IP: [4]byte{203, 0, 113, 7}, Port: 28000},
			{IP: [4]byte{192, 168, 0, 7}, Port: 28000},
		},
	}
	// Deliver the master's forward to us.
	forwarder := &counterNode{}
	masterConn := net.Attach(netaddr.Addr{IP: [4]byte{192, 0, 2, 1}, Port: 27951}, func(from netaddr.Addr, payload []byte) {
		forwarder.received = append(forwarder.received, payload)
	})
	masterConn.Send(selfAddr, offer.Encode(protocol.MasterServerClientRequestedArrangedConnection))
	net.Pump()

	if forwarder.typeCount(protocol.MasterServerAcceptArrangedConnection) != 1 {
		t.Error("offer not acknowledged to the forwarding master")
	}
	if len(sink.candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(sink.candidates))
	}
	if sink.isHost {
		t.Error("offer receiver should not be the arranging side")
	}
}

func TestInviteResponseSentinel(t *testing.T) {
	_, sink, net, _ := newClient(t)

	host := netaddr.Addr{IP: [4]byte{203, 0, 113, 9}, Port: 28000}
	peerConn := net.Attach(host, nil)

	resp := &protocol.JoinInviteResponse{
		Found: true,
		Host:  netaddr.Broadcast(28000), // "use the sender address"
	}
	peerConn.Send(selfAddr, resp.Encode())
	net.Pump()

	if !sink.inviteOK {
		t.Fatal("invite not accepted")
	}
	if sink.inviteHost != host {
		t.Errorf("invite host = %v, want sender %v", sink.inviteHost, host)
	}
	if !sink.isLocal {
		t.Error("sentinel host should be flagged local")
	}
}

func TestInviteResponseExplicitHost(t *testing.T) {
	_, sink, net, _ := newClient(t)

	sender := netaddr.Addr{IP: [4]byte{192, 0, 2, 5}, Port: 27950}
	target := netaddr.Addr{IP: [4]byte{203, 0, 113, 3}, Port: 28777}
	senderConn := net.Attach(sender, nil)

	resp := &protocol.JoinInviteResponse{Found: true, Host: target}
	senderConn.Send(selfAddr, resp.Encode())
	net.Pump()

	if !sink.inviteOK || sink.inviteHost != target || sink.isLocal {
		t.Errorf("invite result = %v %v local=%v", sink.inviteOK, sink.inviteHost, sink.isLocal)
	}
}

func TestRejectionReasons(t *testing.T) {
	_, sink, net, _ := newClient(t)
	sender := netaddr.Addr{IP: [4]byte{192, 0, 2, 5}, Port: 27950}
	senderConn := net.Attach(sender, nil)

	rej := &protocol.ArrangedConnectReject{Reason: protocol.RejectNoSuchHost}
	senderConn.Send(selfAddr, rej.Encode())
	net.Pump()

	if len(sink.rejections) != 1 || sink.rejections[0] != "No such server" {
		t.Errorf("rejections = %v", sink.rejections)
	}
}
