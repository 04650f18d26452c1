package transport

import (
	"testing"

	"github.com/scout-project/scout/internal/netaddr"
)

func TestUnicastDelivery(t *testing.T) {
	net := NewNetwork()
	a := netaddr.Addr{IP: [4]byte{10, 0, 0, 1}, Port: 1000}
	b := netaddr.Addr{IP: [4]byte{10, 0, 0, 2}, Port: 1000}

	var got []byte
	connA := net.Attach(a, nil)
	net.Attach(b, func(from netaddr.Addr, payload []byte) {
		if from != a {
			t.Errorf("from = %v", from)
		}
		got = payload
	})

	connA.Send(b, []byte{1, 2, 3})
	if got != nil {
		t.Fatal("delivered before Pump")
	}
	if n := net.Pump(); n != 1 {
		t.Fatalf("Pump = %d", n)
	}
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("payload = %v", got)
	}
}

func TestBroadcastFanOut(t *testing.T) {
	net := NewNetwork()
	sender := netaddr.Addr{IP: [4]byte{10, 0, 0, 1}, Port: 28000}
	peer1 := netaddr.Addr{IP: [4]byte{10, 0, 0, 2}, Port: 28000}
	peer2 := netaddr.Addr{IP: [4]byte{10, 0, 0, 3}, Port: 28000}
	other := netaddr.Addr{IP: [4]byte{10, 0, 0, 4}, Port: 29000} // different port

	hits := map[netaddr.Addr]int{}
	handler := func(self netaddr.Addr) Handler {
		return func(from netaddr.Addr, payload []byte) { hits[self]++ }
	}

	conn := net.Attach(sender, nil)
	net.Attach(peer1, handler(peer1))
	net.Attach(peer2, handler(peer2))
	net.Attach(other, handler(other))

	conn.Send(netaddr.Broadcast(28000), []byte{0xCA})
	net.Pump()

	if hits[peer1] != 1 || hits[peer2] != 1 {
		t.Errorf("peers hit = %v", hits)
	}
	if hits[other] != 0 {
		t.Error("broadcast crossed ports")
	}
	if hits[sender] != 0 {
		t.Error("broadcast echoed to sender")
	}
}

func TestLossRule(t *testing.T) {
	net := NewNetwork()
	a := netaddr.Addr{IP: [4]byte{10, 0, 0, 1}, Port: 1000}
	b := netaddr.Addr{IP: [4]byte{10, 0, 0, 2}, Port: 1000}

	delivered := 0
	connA := net.Attach(a, nil)
	net.Attach(b, func(from netaddr.Addr, payload []byte) { delivered++ })

	net.SetLoss(func(from, to netaddr.Addr) bool { return to == b })
	connA.Send(b, []byte{1})
	net.Pump()
	if delivered != 0 {
		t.Error("loss rule did not drop")
	}

	net.SetLoss(nil)
	connA.Send(b, []byte{1})
	net.Pump()
	if delivered != 1 {
		t.Errorf("delivered = %d", delivered)
	}
}
