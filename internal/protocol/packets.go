// Package protocol defines the discovery wire protocol: packet type codes,
// flag bits, and the encoders/decoders for every message shape. Every
// message begins with a three-field header (u8 packetType, u8 flags,
// u32 sessionKey); responders echo the requester's flags and sessionKey
// verbatim. All multi-byte fields are little-endian.
package protocol

// Packet type codes. The classic directory/liveness messages use the even
// code sequence; the NAT-traversal profile continues it.
const (
	MasterServerGameTypesRequest  uint8 = 2
	MasterServerGameTypesResponse uint8 = 4
	MasterServerListRequest       uint8 = 6
	MasterServerListResponse      uint8 = 8
	GameMasterInfoRequest         uint8 = 10
	GameMasterInfoResponse        uint8 = 12
	GamePingRequest               uint8 = 14
	GamePingResponse              uint8 = 16
	GameInfoRequest               uint8 = 18
	GameInfoResponse              uint8 = 20
	GameHeartbeat                 uint8 = 22

	// NAT-traversal profile.
	MasterServerRequestArrangedConnection         uint8 = 30
	MasterServerClientRequestedArrangedConnection uint8 = 32
	MasterServerAcceptArrangedConnection          uint8 = 34
	MasterServerArrangedConnectionAccepted        uint8 = 36
	MasterServerArrangedConnectionRejected        uint8 = 38
	MasterServerGamePingRequest                   uint8 = 40
	MasterServerGamePingResponse                  uint8 = 42
	MasterServerGameInfoRequest                   uint8 = 44
	MasterServerGameInfoResponse                  uint8 = 46
	MasterServerRelayRequest                      uint8 = 48
	MasterServerRelayResponse                     uint8 = 50
	MasterServerRelayReady                        uint8 = 52
	MasterServerJoinInvite                        uint8 = 54
	MasterServerJoinInviteResponse                uint8 = 56
)

// Query flag bits carried in the header flags byte.
const (
	OnlineQuery      uint8 = 0      // authenticated with a master
	OfflineQuery     uint8 = 1 << 0 // on our own; online servers ignore it
	NoStringCompress uint8 = 1 << 1 // responder must use the short-string form
)

// Filter flag bits carried in MasterServerListRequest.
const (
	FilterDedicated      uint8 = 1 << 0
	FilterNotPassworded  uint8 = 1 << 1
	FilterLinux          uint8 = 1 << 2
	FilterCurrentVersion uint8 = 1 << 7 // wire-layout compatibility only; version mismatches always drop
)

// VersionString tags the query protocol revision in ping responses.
const VersionString = "VER1"

// Protocol compatibility bounds exchanged during the ping handshake.
const (
	CurrentProtocolVersion     uint32 = 12
	MinRequiredProtocolVersion uint32 = 9
)

// BuildVersion is the engine build number; peers on a different build are
// dropped during the ping exchange.
const BuildVersion uint32 = 2001

// MaxServerNameLen caps server names in ping responses.
const MaxServerNameLen = 24

// AllPages in the packetIndex field of a list request asks the master for
// the whole list.
const AllPages uint8 = 255

// SessionKey composes the 32-bit wire token from the session counter and
// the per-request 16-bit key.
func SessionKey(session uint16, key uint16) uint32 {
	return uint32(session)<<16 | uint32(key)
}

// SplitSessionKey recovers the session and key halves of a wire token.
func SplitSessionKey(token uint32) (session uint16, key uint16) {
	return uint16(token >> 16), uint16(token & 0xFFFF)
}
