package protocol

import (
	"fmt"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/netaddr"
)

// Header is the common prefix of every message.
type Header struct {
	Type       uint8
	Flags      uint8
	SessionKey uint32
}

func writeHeader(w *codec.Writer, h Header) {
	w.WriteU8(h.Type).WriteU8(h.Flags).WriteU32(h.SessionKey)
}

// ReadHeader consumes the common prefix of a received datagram.
func ReadHeader(r *codec.Reader) (Header, error) {
	var h Header
	var err error
	if h.Type, err = r.ReadU8(); err != nil {
		return h, fmt.Errorf("failed to read packet type: %w", err)
	}
	if h.Flags, err = r.ReadU8(); err != nil {
		return h, fmt.Errorf("failed to read packet flags: %w", err)
	}
	if h.SessionKey, err = r.ReadU32(); err != nil {
		return h, fmt.Errorf("failed to read session key: %w", err)
	}
	return h, nil
}

func writeAddr(w *codec.Writer, a netaddr.Addr) {
	w.WriteU8(a.IP[0]).WriteU8(a.IP[1]).WriteU8(a.IP[2]).WriteU8(a.IP[3])
	w.WriteU16(a.Port)
}

func readAddr(r *codec.Reader) (netaddr.Addr, error) {
	var a netaddr.Addr
	for i := 0; i < 4; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return a, err
		}
		a.IP[i] = b
	}
	port, err := r.ReadU16()
	if err != nil {
		return a, err
	}
	a.Port = port
	return a, nil
}

// HeaderOnly builds a message that has no body beyond the common header
// (ping request, info request, game types request, heartbeat).
func HeaderOnly(pktType uint8, flags uint8, sessionKey uint32) []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: pktType, Flags: flags, SessionKey: sessionKey})
	return w.Bytes()
}

// ListRequest asks a master for a filtered server list, or re-requests a
// single page. Page re-requests keep the session token but carry an
// otherwise empty filter; that asymmetry is part of the protocol.
type ListRequest struct {
	Flags       uint8
	SessionKey  uint32
	PacketIndex uint8 // AllPages for the initial request
	GameType    string
	MissionType string
	MinPlayers  uint8
	MaxPlayers  uint8
	RegionMask  uint32
	Version     uint32
	FilterFlags uint8
	MaxBots     uint8
	MinCPU      uint16
	BuddyList   []uint32
}

// Encode serializes the request.
func (m *ListRequest) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerListRequest, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteU8(m.PacketIndex)
	w.WriteString(m.GameType)
	w.WriteString(m.MissionType)
	w.WriteU8(m.MinPlayers)
	w.WriteU8(m.MaxPlayers)
	w.WriteU32(m.RegionMask)
	w.WriteU32(m.Version)
	w.WriteU8(m.FilterFlags)
	w.WriteU8(m.MaxBots)
	w.WriteU16(m.MinCPU)
	w.WriteU8(uint8(len(m.BuddyList)))
	for _, b := range m.BuddyList {
		w.WriteU32(b)
	}
	return w.Bytes()
}

// DecodeListRequest parses a request body (header already consumed).
func DecodeListRequest(r *codec.Reader, h Header) (*ListRequest, error) {
	m := &ListRequest{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.PacketIndex, err = r.ReadU8(); err != nil {
		return nil, fmt.Errorf("failed to parse list request index: %w", err)
	}
	if m.GameType, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("failed to parse list request game type: %w", err)
	}
	if m.MissionType, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("failed to parse list request mission type: %w", err)
	}
	if m.MinPlayers, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.MaxPlayers, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.RegionMask, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.FilterFlags, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.MaxBots, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.MinCPU, err = r.ReadU16(); err != nil {
		return nil, err
	}
	count, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < count; i++ {
		guid, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("failed to parse buddy list: %w", err)
		}
		m.BuddyList = append(m.BuddyList, guid)
	}
	return m, nil
}

// ListResponse is one page of the master's server list. Flags != 0 signals
// that the first tuple is the requester's own public address.
type ListResponse struct {
	Flags       uint8
	SessionKey  uint32
	PacketIndex uint8
	PacketTotal uint8
	Servers     []netaddr.Addr
}

// Encode serializes the response.
func (m *ListResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerListResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteU8(m.PacketIndex)
	w.WriteU8(m.PacketTotal)
	w.WriteU16(uint16(len(m.Servers)))
	for _, a := range m.Servers {
		writeAddr(w, a)
	}
	return w.Bytes()
}

// DecodeListResponse parses a response body (header already consumed).
func DecodeListResponse(r *codec.Reader, h Header) (*ListResponse, error) {
	m := &ListResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.PacketIndex, err = r.ReadU8(); err != nil {
		return nil, fmt.Errorf("failed to parse list response index: %w", err)
	}
	if m.PacketTotal, err = r.ReadU8(); err != nil {
		return nil, fmt.Errorf("failed to parse list response total: %w", err)
	}
	count, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to parse list response count: %w", err)
	}
	for i := uint16(0); i < count; i++ {
		a, err := readAddr(r)
		if err != nil {
			return nil, fmt.Errorf("failed to parse list response entry %d: %w", i, err)
		}
		m.Servers = append(m.Servers, a)
	}
	return m, nil
}

// GameTypesResponse carries the master's known game and mission types.
type GameTypesResponse struct {
	Flags        uint8
	SessionKey   uint32
	GameTypes    []string
	MissionTypes []string
}

// Encode serializes the response.
func (m *GameTypesResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: MasterServerGameTypesResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteU8(uint8(len(m.GameTypes)))
	for _, s := range m.GameTypes {
		w.WriteString(s)
	}
	w.WriteU8(uint8(len(m.MissionTypes)))
	for _, s := range m.MissionTypes {
		w.WriteString(s)
	}
	return w.Bytes()
}

// DecodeGameTypesResponse parses a response body (header already consumed).
func DecodeGameTypesResponse(r *codec.Reader, h Header) (*GameTypesResponse, error) {
	m := &GameTypesResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	count, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < count; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("failed to parse game type %d: %w", i, err)
		}
		m.GameTypes = append(m.GameTypes, s)
	}
	if count, err = r.ReadU8(); err != nil {
		return nil, err
	}
	for i := uint8(0); i < count; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("failed to parse mission type %d: %w", i, err)
		}
		m.MissionTypes = append(m.MissionTypes, s)
	}
	return m, nil
}

// PingResponse answers a GamePingRequest. When the request set
// NoStringCompress the strings use the short form; otherwise the responder
// may use the compressed form and requesters must tolerate either.
type PingResponse struct {
	Flags         uint8
	SessionKey    uint32
	VersionString string
	CurrentProto  uint32
	MinProto      uint32
	Build         uint32
	Name          string
}

// Encode serializes the response.
func (m *PingResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: GamePingResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	name := m.Name
	if len(name) > MaxServerNameLen {
		name = name[:MaxServerNameLen]
	}
	if m.Flags&NoStringCompress != 0 {
		w.WriteString(m.VersionString)
	} else {
		w.WriteCompressedString(m.VersionString)
	}
	w.WriteU32(m.CurrentProto)
	w.WriteU32(m.MinProto)
	w.WriteU32(m.Build)
	if m.Flags&NoStringCompress != 0 {
		w.WriteString(name)
	} else {
		w.WriteCompressedString(name)
	}
	return w.Bytes()
}

// DecodePingResponse parses a response body (header already consumed).
func DecodePingResponse(r *codec.Reader, h Header) (*PingResponse, error) {
	m := &PingResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.VersionString, err = r.ReadVarString(); err != nil {
		return nil, fmt.Errorf("failed to parse ping version string: %w", err)
	}
	if m.CurrentProto, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.MinProto, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Build, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Name, err = r.ReadVarString(); err != nil {
		return nil, fmt.Errorf("failed to parse ping server name: %w", err)
	}
	return m, nil
}

// InfoResponse answers a GameInfoRequest with the richer server record.
type InfoResponse struct {
	Flags       uint8
	SessionKey  uint32
	GameType    string
	MissionType string
	MissionName string
	Status      uint8
	NumPlayers  uint8
	MaxPlayers  uint8
	NumBots     uint8
	CPUSpeed    uint16
	Info        string
	Content     string // long-string form, produced by a host hook
}

// Encode serializes the response.
func (m *InfoResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: GameInfoResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	writeStr := w.WriteCompressedString
	if m.Flags&NoStringCompress != 0 {
		writeStr = w.WriteString
	}
	writeStr(m.GameType)
	writeStr(m.MissionType)
	writeStr(m.MissionName)
	w.WriteU8(m.Status)
	w.WriteU8(m.NumPlayers)
	w.WriteU8(m.MaxPlayers)
	w.WriteU8(m.NumBots)
	w.WriteU16(m.CPUSpeed)
	writeStr(m.Info)
	w.WriteLongString(m.Content)
	return w.Bytes()
}

// DecodeInfoResponse parses a response body (header already consumed).
func DecodeInfoResponse(r *codec.Reader, h Header) (*InfoResponse, error) {
	m := &InfoResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.GameType, err = r.ReadVarString(); err != nil {
		return nil, fmt.Errorf("failed to parse info game type: %w", err)
	}
	if m.MissionType, err = r.ReadVarString(); err != nil {
		return nil, fmt.Errorf("failed to parse info mission type: %w", err)
	}
	if m.MissionName, err = r.ReadVarString(); err != nil {
		return nil, fmt.Errorf("failed to parse info mission name: %w", err)
	}
	if m.Status, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.NumPlayers, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.MaxPlayers, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.NumBots, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.CPUSpeed, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if m.Info, err = r.ReadVarString(); err != nil {
		return nil, fmt.Errorf("failed to parse info string: %w", err)
	}
	if m.Content, err = r.ReadLongString(); err != nil {
		return nil, fmt.Errorf("failed to parse info content: %w", err)
	}
	return m, nil
}

// MasterInfoResponse is the richer info record sent to masters: it adds the
// invite code, region mask, build version, and the player GUID list padded
// with zeros to PlayerCount.
type MasterInfoResponse struct {
	Flags       uint8
	SessionKey  uint32
	GameType    string
	MissionType string
	InviteCode  string
	MaxPlayers  uint8 // configured max minus private slots
	RegionMask  uint32
	Version     uint32
	Status      uint8
	NumBots     uint8
	CPUSpeed    uint32
	GUIDs       []uint32
}

// Encode serializes the response.
func (m *MasterInfoResponse) Encode() []byte {
	w := codec.NewWriter()
	writeHeader(w, Header{Type: GameMasterInfoResponse, Flags: m.Flags, SessionKey: m.SessionKey})
	w.WriteString(m.GameType)
	w.WriteString(m.MissionType)
	w.WriteString(m.InviteCode)
	w.WriteU8(m.MaxPlayers)
	w.WriteU32(m.RegionMask)
	w.WriteU32(m.Version)
	w.WriteU8(m.Status)
	w.WriteU8(m.NumBots)
	w.WriteU32(m.CPUSpeed)
	w.WriteU8(uint8(len(m.GUIDs)))
	for _, g := range m.GUIDs {
		w.WriteU32(g)
	}
	return w.Bytes()
}

// DecodeMasterInfoResponse parses a response body (header already consumed).
func DecodeMasterInfoResponse(r *codec.Reader, h Header) (*MasterInfoResponse, error) {
	m := &MasterInfoResponse{Flags: h.Flags, SessionKey: h.SessionKey}
	var err error
	if m.GameType, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.MissionType, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.InviteCode, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.MaxPlayers, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.RegionMask, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Status, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.NumBots, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.CPUSpeed, err = r.ReadU32(); err != nil {
		return nil, err
	}
	count, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < count; i++ {
		g, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("failed to parse guid list: %w", err)
		}
		m.GUIDs = append(m.GUIDs, g)
	}
	return m, nil
}
