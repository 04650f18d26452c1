// Package registry holds the discovered-server records. Records are keyed
// by endpoint address and persist across query sessions so a refresh does
// not lose the list.
package registry

import (
	"strings"

	"github.com/scout-project/scout/internal/netaddr"
)

// Status is the ServerInfo status bitset. The low bits are client-side
// query state; the high bits mirror server-published attributes.
type Status uint8

const (
	StatusNew       Status = 0
	StatusUpdating  Status = 1 << 0
	StatusQuerying  Status = 1 << 1
	StatusTimedOut  Status = 1 << 2
	StatusResponded Status = 1 << 3

	// Server-published attributes, as carried in info responses.
	StatusLinux      Status = 1 << 4
	StatusDedicated  Status = 1 << 5
	StatusPassworded Status = 1 << 6
	StatusPrivate    Status = 1 << 7
)

// AttributeMask selects the server-published bits of a status byte.
const AttributeMask = StatusLinux | StatusDedicated | StatusPassworded | StatusPrivate

// Test reports whether all bits in mask are set.
func (s Status) Test(mask Status) bool {
	return s&mask == mask
}

// String renders the set bits for logs.
func (s Status) String() string {
	if s == StatusNew {
		return "new"
	}
	names := []struct {
		bit  Status
		name string
	}{
		{StatusUpdating, "updating"},
		{StatusQuerying, "querying"},
		{StatusTimedOut, "timed_out"},
		{StatusResponded, "responded"},
		{StatusLinux, "linux"},
		{StatusDedicated, "dedicated"},
		{StatusPassworded, "passworded"},
		{StatusPrivate, "private"},
	}
	var parts []string
	for _, n := range names {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ServerInfo is one discovered endpoint.
type ServerInfo struct {
	Address      netaddr.Addr
	Name         string
	GameType     string
	MissionType  string
	MissionName  string
	StatusString string
	InfoString   string

	NumPlayers uint8
	MaxPlayers uint8
	NumBots    uint8
	Version    uint32
	CPUSpeed   uint16
	Ping       uint32 // most recent RTT in ms, 0 if none

	Status     Status
	IsFavorite bool
	IsLocal    bool
}

// IsUpdating reports whether a per-server refresh is in progress; filters
// must not evict the record until the new info arrives.
func (si *ServerInfo) IsUpdating() bool {
	return si.Status.Test(StatusUpdating)
}

// IsQuerying reports whether the info exchange is in flight.
func (si *ServerInfo) IsQuerying() bool {
	return si.Status.Test(StatusQuerying)
}

// IsDedicated reports the server-published dedicated attribute.
func (si *ServerInfo) IsDedicated() bool {
	return si.Status.Test(StatusDedicated)
}

// IsPassworded reports the server-published password attribute.
func (si *ServerInfo) IsPassworded() bool {
	return si.Status.Test(StatusPassworded)
}

// Registry owns the ServerInfo records. It preserves insertion order so the
// browser list is stable across refreshes.
type Registry struct {
	order []netaddr.Addr
	byKey map[netaddr.Addr]*ServerInfo
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byKey: make(map[netaddr.Addr]*ServerInfo)}
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.order)
}

// Find returns the record for addr, or nil.
func (r *Registry) Find(addr netaddr.Addr) *ServerInfo {
	return r.byKey[addr]
}

// FindOrCreate returns the record for addr, creating it if absent.
func (r *Registry) FindOrCreate(addr netaddr.Addr) *ServerInfo {
	if si := r.byKey[addr]; si != nil {
		return si
	}
	si := &ServerInfo{Address: addr}
	r.byKey[addr] = si
	r.order = append(r.order, addr)
	return si
}

// Remove deletes the record for addr. Returns true if a record existed.
func (r *Registry) Remove(addr netaddr.Addr) bool {
	if _, ok := r.byKey[addr]; !ok {
		return false
	}
	delete(r.byKey, addr)
	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// At returns the record at list position i, or nil when out of range.
func (r *Registry) At(i int) *ServerInfo {
	if i < 0 || i >= len(r.order) {
		return nil
	}
	return r.byKey[r.order[i]]
}

// All returns the records in list order.
func (r *Registry) All() []*ServerInfo {
	out := make([]*ServerInfo, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, r.byKey[a])
	}
	return out
}

// Clear removes every record.
func (r *Registry) Clear() {
	r.order = r.order[:0]
	r.byKey = make(map[netaddr.Addr]*ServerInfo)
}
