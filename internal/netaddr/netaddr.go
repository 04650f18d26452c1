// Package netaddr defines the endpoint address type used throughout the
// discovery engine. Addresses are IPv4 + port; the broadcast sentinel from
// the textual form "IP:BROADCAST:<port>" maps to 255.255.255.255.
package netaddr

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Addr identifies a datagram endpoint. It is comparable and is used as the
// primary key of the server registry.
type Addr struct {
	IP   [4]byte
	Port uint16
}

// Broadcast returns the LAN broadcast address for the given port.
func Broadcast(port uint16) Addr {
	return Addr{IP: [4]byte{255, 255, 255, 255}, Port: port}
}

// IsBroadcast reports whether the address is the broadcast sentinel.
func (a Addr) IsBroadcast() bool {
	return a.IP == [4]byte{255, 255, 255, 255}
}

// IsZero reports whether the address is the zero value.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// String formats the address in the protocol's textual form, e.g.
// "IP:192.168.1.2:28000" or "IP:BROADCAST:28000".
func (a Addr) String() string {
	if a.IsBroadcast() {
		return fmt.Sprintf("IP:BROADCAST:%d", a.Port)
	}
	return fmt.Sprintf("IP:%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// HostPort formats the address as "host:port" for the OS socket layer.
func (a Addr) HostPort() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// UDPAddr converts to the net package representation.
func (a Addr) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(a.IP[0], a.IP[1], a.IP[2], a.IP[3]),
		Port: int(a.Port),
	}
}

// FromUDPAddr converts from the net package representation. Non-IPv4
// addresses yield ok=false.
func FromUDPAddr(ua *net.UDPAddr) (Addr, bool) {
	ip4 := ua.IP.To4()
	if ip4 == nil {
		return Addr{}, false
	}
	var a Addr
	copy(a.IP[:], ip4)
	a.Port = uint16(ua.Port)
	return a, true
}

// Parse accepts "IP:host:port", "IP:BROADCAST:port", or a bare "host:port".
// Hostnames are resolved; resolution failures are errors.
func Parse(s string) (Addr, error) {
	text := strings.TrimPrefix(s, "IP:")
	if strings.HasPrefix(strings.ToUpper(text), "BROADCAST:") {
		portStr := text[len("BROADCAST:"):]
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return Addr{}, fmt.Errorf("bad broadcast port in %q: %w", s, err)
		}
		return Broadcast(uint16(port)), nil
	}

	host, portStr, err := net.SplitHostPort(text)
	if err != nil {
		return Addr{}, fmt.Errorf("bad address %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Addr{}, fmt.Errorf("bad port in %q: %w", s, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return Addr{}, fmt.Errorf("cannot resolve host %q", host)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return Addr{}, fmt.Errorf("address %q is not IPv4", s)
	}

	var a Addr
	copy(a.IP[:], ip4)
	a.Port = uint16(port)
	return a, nil
}

// Set is an ordered collection of unique addresses. The finished list and
// the local-address list are Sets.
type Set struct {
	addrs []Addr
}

// Contains reports membership.
func (s *Set) Contains(a Addr) bool {
	for _, e := range s.addrs {
		if e == a {
			return true
		}
	}
	return false
}

// Add inserts the address if not already present.
func (s *Set) Add(a Addr) {
	if !s.Contains(a) {
		s.addrs = append(s.addrs, a)
	}
}

// Remove deletes the address if present.
func (s *Set) Remove(a Addr) {
	for i, e := range s.addrs {
		if e == a {
			s.addrs = append(s.addrs[:i], s.addrs[i+1:]...)
			return
		}
	}
}

// Len returns the number of addresses.
func (s *Set) Len() int {
	return len(s.addrs)
}

// Clear removes all addresses.
func (s *Set) Clear() {
	s.addrs = s.addrs[:0]
}

// All returns a snapshot of the members.
func (s *Set) All() []Addr {
	out := make([]Addr, len(s.addrs))
	copy(out, s.addrs)
	return out
}
