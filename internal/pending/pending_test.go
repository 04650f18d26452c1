package pending

import (
	"testing"

	"github.com/scout-project/scout/internal/netaddr"
)

func addr(last byte) netaddr.Addr {
	return netaddr.Addr{IP: [4]byte{10, 0, 0, last}, Port: 28000}
}

func TestTablePushFindRemove(t *testing.T) {
	var tbl Table
	tbl.Push(Entry{Address: addr(1), TryCount: 4})
	tbl.Push(Entry{Address: addr(2), TryCount: 4})
	tbl.Push(Entry{Address: addr(3), TryCount: 4})

	if i := tbl.Find(addr(2)); i != 1 {
		t.Errorf("Find = %d, want 1", i)
	}
	if i := tbl.Find(addr(9)); i != -1 {
		t.Errorf("Find missing = %d, want -1", i)
	}

	removed := tbl.Remove(1)
	if removed.Address != addr(2) {
		t.Errorf("Remove returned %v", removed.Address)
	}
	// Later entries slide up into the freed slot.
	if tbl.At(1).Address != addr(3) {
		t.Errorf("slot 1 = %v after remove, want %v", tbl.At(1).Address, addr(3))
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d", tbl.Len())
	}
}

func TestCountRequestsExcludesBroadcasts(t *testing.T) {
	var tbl Table
	tbl.Push(Entry{Address: netaddr.Broadcast(28000), Broadcast: true, TryCount: 1})
	tbl.Push(Entry{Address: addr(1), TryCount: 4})
	tbl.Push(Entry{Address: addr(2), TryCount: 4})

	if got := tbl.CountRequests(); got != 2 {
		t.Errorf("CountRequests = %d, want 2", got)
	}
	if tbl.Len() != 3 {
		t.Errorf("Len = %d, want 3 (broadcast still consumes a slot)", tbl.Len())
	}
}

func TestInPlaceMutation(t *testing.T) {
	var tbl Table
	tbl.Push(Entry{Address: addr(1), TryCount: 4})

	e := tbl.At(0)
	e.TryCount--
	e.Key = 42
	e.Time = 100

	if tbl.At(0).TryCount != 3 || tbl.At(0).Key != 42 || tbl.At(0).Time != 100 {
		t.Errorf("in-place mutation lost: %+v", *tbl.At(0))
	}
}

func TestPacketList(t *testing.T) {
	var pl PacketList
	pl.Push(PacketStatus{Index: 1, Key: 10, TryCount: 4})
	pl.Push(PacketStatus{Index: 2, Key: 11, TryCount: 4})

	if i := pl.Find(2); i != 1 {
		t.Errorf("Find(2) = %d", i)
	}
	if i := pl.Find(7); i != -1 {
		t.Errorf("Find(7) = %d", i)
	}

	pl.Remove(0)
	if pl.Len() != 1 || pl.At(0).Index != 2 {
		t.Errorf("unexpected list after remove")
	}

	pl.Clear()
	if pl.Len() != 0 {
		t.Errorf("Len after Clear = %d", pl.Len())
	}
}
