// Package pending tracks in-flight datagram exchanges: the ping and info
// query queues, and the per-page status of a multi-packet master list
// response.
package pending

import "github.com/scout-project/scout/internal/netaddr"

// Entry is one in-flight ping or info exchange.
type Entry struct {
	Address   netaddr.Addr
	Session   uint16
	Key       uint16
	Time      uint32 // virtual ms of last send, 0 = never sent
	TryCount  uint32 // remaining attempts
	Broadcast bool
	IsLocal   bool
}

// Table is an ordered queue of entries. The engine services only the first
// entries each tick, up to its concurrency cap; the rest wait for a slot.
type Table struct {
	entries []Entry
}

// Len returns the number of entries, serviced or waiting.
func (t *Table) Len() int {
	return len(t.entries)
}

// Push appends an entry.
func (t *Table) Push(e Entry) {
	t.entries = append(t.entries, e)
}

// At returns a pointer to the entry at index i for in-place mutation.
func (t *Table) At(i int) *Entry {
	return &t.entries[i]
}

// Find returns the index of the entry for addr, or -1.
func (t *Table) Find(addr netaddr.Addr) int {
	for i := range t.entries {
		if t.entries[i].Address == addr {
			return i
		}
	}
	return -1
}

// Remove deletes the entry at index i, sliding later entries up so the
// next candidate takes the freed slot.
func (t *Table) Remove(i int) Entry {
	e := t.entries[i]
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return e
}

// Clear drops every entry.
func (t *Table) Clear() {
	t.entries = t.entries[:0]
}

// CountRequests counts entries excluding broadcasts; broadcast probes are
// not reported as outstanding requests in progress updates.
func (t *Table) CountRequests() int {
	count := 0
	for i := range t.entries {
		if !t.entries[i].Broadcast {
			count++
		}
	}
	return count
}

// PacketStatus tracks one outstanding master list page beyond the first.
type PacketStatus struct {
	Index    uint8
	Key      uint16
	Time     uint32
	TryCount uint32
}

// PacketList is the set of outstanding list pages.
type PacketList struct {
	packets []PacketStatus
}

// Len returns the number of outstanding pages.
func (l *PacketList) Len() int {
	return len(l.packets)
}

// Push appends a page record.
func (l *PacketList) Push(p PacketStatus) {
	l.packets = append(l.packets, p)
}

// At returns a pointer to the record at index i for in-place mutation.
func (l *PacketList) At(i int) *PacketStatus {
	return &l.packets[i]
}

// Find returns the index of the record for the given page, or -1.
func (l *PacketList) Find(index uint8) int {
	for i := range l.packets {
		if l.packets[i].Index == index {
			return i
		}
	}
	return -1
}

// Remove deletes the record at index i.
func (l *PacketList) Remove(i int) {
	l.packets = append(l.packets[:i], l.packets[i+1:]...)
}

// Clear drops every record.
func (l *PacketList) Clear() {
	l.packets = l.packets[:0]
}
