package protocol

import (
	"fmt"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/netaddr"
)

// The NAT-traversal profile shares the standard header. Messages that
// relay a full inner packet (the holepunch-assisted ping/info forwards)
// carry the target address followed by the inner payload.

// ArrangedConnectRequest asks a master to introduce us to the target.
type ArrangedConnectRequest struct {
	Flags      uint8
	SessionKey uint32
	Target     netaddr.Addr
}

// Encode serializes the request.
func (m *ArrangedConnectRequest) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerRequestArrangedConnection, Flags: m.Flags, SessionKey: m.SessionKey})
	writeAddr(w, m.Target)
	return w.Bytes()
}

// DecodeArrangedConnectRequest parses a request body (header already consumed).
func DecodeArrangedConnectRequest(r *codec.Reader, h Header) (*ArrangedConnectRequest, error) {
	m := &ArrangedConnectRequest{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.Target, err = readAddr(r); err != nil {
		return nil, fmt.Errorf("failed to parse arranged connect target: %w", err)
	}
	return m, nil
}

// ArrangedConnectOffer is forwarded by the master to the host being joined:
// the joiner's client id plus its candidate addresses.
type ArrangedConnectOffer struct {
	Flags      uint8
	SessionKey uint32
	ClientID   uint16
	Candidates []netaddr.Addr
}

// Encode serializes the offer with the given packet type
// (MasterServerClientRequestedArrangedConnection on the forward path,
// MasterServerArrangedConnectionAccepted on the reply path, which omits
// the client id).
func (m *ArrangedConnectOffer) Encode(pktType uint8) []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: pktType, Flags: m.Flags, SessionKey: m.SessionKey})
	if pktType == MasterServerClientRequestedArrangedConnection {
		w.WriteU16(m.ClientID)
	}
	w.WriteU8(uint8(len(m.Candidates)))
	for _, a := range m.Candidates {
		writeAddr(w, a)
	}
	return w.Bytes()
}

// DecodeArrangedConnectOffer parses an offer body (header already consumed).
func DecodeArrangedConnectOffer(r *codec.Reader, h Header) (*ArrangedConnectOffer, error) {
	m := &ArrangedConnectOffer{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if h.Type == MasterServerClientRequestedArrangedConnection {
		if m.ClientID, err = r.ReadU16(); err != nil {
			return nil, fmt.Errorf("failed to parse arranged connect client id: %w", err)
		}
	}
	count, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < count; i++ {
		a, err := readAddr(r)
		if err != nil {
			return nil, fmt.Errorf("failed to parse candidate address %d: %w", i, err)
		}
		m.Candidates = append(m.Candidates, a)
	}
	return m, nil
}

// ArrangedConnectAccept acknowledges an offer back to the master.
type ArrangedConnectAccept struct {
	Flags      uint8
	SessionKey uint32
	ClientID   uint16
}

// Encode serializes the accept.
func (m *ArrangedConnectAccept) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerAcceptArrangedConnection, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteU16(m.ClientID)
	return w.Bytes()
}

// Arranged-connection rejection reasons.
const (
	RejectNoSuchHost uint8 = 0
	RejectRefused    uint8 = 1
)

// ArrangedConnectReject reports a failed introduction.
type ArrangedConnectReject struct {
	Flags      uint8
	SessionKey uint32
	Reason     uint8
}

// Encode serializes the rejection.
func (m *ArrangedConnectReject) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerArrangedConnectionRejected, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteU8(m.Reason)
	return w.Bytes()
}

// DecodeArrangedConnectReject parses a rejection body (header already consumed).
func DecodeArrangedConnectReject(r *codec.Reader, h Header) (*ArrangedConnectReject, error) {
	m := &ArrangedConnectReject{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.Reason, err = r.ReadU8(); err != nil {
		return nil, err
	}
	return m, nil
}

// RelayRequest asks a master to nominate a relay endpoint for the target.
type RelayRequest struct {
	Flags      uint8
	SessionKey uint32
	Target     netaddr.Addr
}

// Encode serializes the request.
func (m *RelayRequest) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerRelayRequest, Flags: m.Flags, SessionKey: m.SessionKey})
	writeAddr(w, m.Target)
	return w.Bytes()
}

// RelayResponse returns the nominated relay and which role we take.
type RelayResponse struct {
	Flags      uint8
	SessionKey uint32
	IsHost     bool
	Relay      netaddr.Addr
}

// Encode serializes the response.
func (m *RelayResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerRelayResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteBool(m.IsHost)
	writeAddr(w, m.Relay)
	return w.Bytes()
}

// DecodeRelayResponse parses a response body (header already consumed).
func DecodeRelayResponse(r *codec.Reader, h Header) (*RelayResponse, error) {
	m := &RelayResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.IsHost, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if m.Relay, err = readAddr(r); err != nil {
		return nil, fmt.Errorf("failed to parse relay address: %w", err)
	}
	return m, nil
}

// JoinInvite broadcasts an invite code to masters and the LAN.
type JoinInvite struct {
	Flags      uint8
	SessionKey uint32
	Code       string
}

// Encode serializes the invite.
func (m *JoinInvite) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerJoinInvite, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteString(m.Code)
	return w.Bytes()
}

// DecodeJoinInvite parses an invite body (header already consumed).
func DecodeJoinInvite(r *codec.Reader, h Header) (*JoinInvite, error) {
	m := &JoinInvite{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.Code, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("failed to parse invite code: %w", err)
	}
	return m, nil
}

// JoinInviteResponse answers a matching invite. Host 255.255.255.255 is a
// sentinel meaning "use the sender address as host".
type JoinInviteResponse struct {
	Flags      uint8
	SessionKey uint32
	Found      bool
	Host       netaddr.Addr
}

// Encode serializes the response.
func (m *JoinInviteResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerJoinInviteResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteBool(m.Found)
	writeAddr(w, m.Host)
	return w.Bytes()
}

// DecodeJoinInviteResponse parses a response body (header already consumed).
func DecodeJoinInviteResponse(r *codec.Reader, h Header) (*JoinInviteResponse, error) {
	m := &JoinInviteResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.Found, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if m.Host, err = readAddr(r); err != nil {
		return nil, fmt.Errorf("failed to parse invite host: %w", err)
	}
	return m, nil
}

// ForwardedQuery mirrors a ping or info request through the masters when
// the NAT profile is enabled: the target address followed by the flags and
// session token of the direct request, so the master can reconstruct it.
type ForwardedQuery struct {
	Flags      uint8
	SessionKey uint32
	Target     netaddr.Addr
}

// Encode serializes the forward with the given packet type
// (MasterServerGamePingRequest or MasterServerGameInfoRequest).
func (m *ForwardedQuery) Encode(pktType uint8) []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: pktType, Flags: m.Flags, SessionKey: m.SessionKey})
	writeAddr(w, m.Target)
	return w.Bytes()
}

// DecodeForwardedQuery parses a forward body (header already consumed).
func DecodeForwardedQuery(r *codec.Reader, h Header) (*ForwardedQuery, error) {
	m := &ForwardedQuery{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.Target, err = readAddr(r); err != nil {
		return nil, fmt.Errorf("failed to parse forwarded query target: %w", err)
	}
	return m, nil
}

// ForwardedReply wraps a full inner response datagram relayed back through
// a master: the origin address followed by the inner payload bytes.
type ForwardedReply struct {
	Flags      uint8
	SessionKey uint32
	Origin     netaddr.Addr
	Inner      []byte
}

// Encode serializes the reply with the given packet type
// (MasterServerGamePingResponse or MasterServerGameInfoResponse).
func (m *ForwardedReply) Encode(pktType uint8) []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: pktType, Flags: m.Flags, SessionKey: m.SessionKey})
	writeAddr(w, m.Origin)
	w.WriteBytes(m.Inner)
	return w.Bytes()
}

// DecodeForwardedReply parses a reply body (header already consumed). The
// inner payload is returned raw for re-dispatch.
func DecodeForwardedReply(r *codec.Reader, h Header) (*ForwardedReply, error) {
	m := &ForwardedReply{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.Origin, err = readAddr(r); err != nil {
		return nil, fmt.Errorf("failed to parse forwarded reply origin: %w", err)
	}
	m.Inner = make([]byte, r.Remaining())
	for i := range m.Inner {
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		m.Inner[i] = b
	}
	return m, nil
}
