package protocol

import (
	"reflect"
	"testing"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/netaddr"
)

func decodeHeader(t *testing.T, data []byte, wantType uint8) (*codec.Reader, Header) {
	t.Helper()
	r := codec.NewReader(data)
	h, err := ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Type != wantType {
		t.Fatalf("packet type = %d, want %d", h.Type, wantType)
	}
	return r, h
}

func TestSessionKeyComposition(t *testing.T) {
	token := SessionKey(3, 0xBEEF)
	if token != 0x0003BEEF {
		t.Errorf("SessionKey = %#x", token)
	}
	session, key := SplitSessionKey(token)
	if session != 3 || key != 0xBEEF {
		t.Errorf("SplitSessionKey = %d, %#x", session, key)
	}
}

func TestListRequestRoundTrip(t *testing.T) {
	in := &ListRequest{
		Flags:       NoStringCompress,
		SessionKey:  SessionKey(1, 42),
		PacketIndex: AllPages,
		GameType:    "any",
		MissionType: "ctf",
		MinPlayers:  0,
		MaxPlayers:  255,
		RegionMask:  0xFFFFFFFF,
		Version:     BuildVersion,
		FilterFlags: FilterDedicated | FilterNotPassworded,
		MaxBots:     16,
		MinCPU:      400,
		BuddyList:   []uint32{100, 200, 300},
	}
	r, h := decodeHeader(t, in.Encode(), MasterServerListRequest)
	out, err := DecodeListRequest(r, h)
	if err != nil {
		t.Fatalf("DecodeListRequest: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestListResponseRoundTrip(t *testing.T) {
	in := &ListResponse{
		Flags:       1,
		SessionKey:  SessionKey(2, 7),
		PacketIndex: 0,
		PacketTotal: 3,
		Servers: []netaddr.Addr{
			{IP: [4]byte{192, 168, 1, 2}, Port: 28000},
			{IP: [4]byte{10, 0, 0, 9}, Port: 28001},
		},
	}
	r, h := decodeHeader(t, in.Encode(), MasterServerListResponse)
	out, err := DecodeListResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeListResponse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestGameTypesResponseRoundTrip(t *testing.T) {
	in := &GameTypesResponse{
		SessionKey:   SessionKey(1, 1),
		GameTypes:    []string{"multiplayer", "coop"},
		MissionTypes: []string{"dm", "ctf", "race"},
	}
	r, h := decodeHeader(t, in.Encode(), MasterServerGameTypesResponse)
	out, err := DecodeGameTypesResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeGameTypesResponse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestPingResponseRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		flags uint8
	}{
		{name: "short strings", flags: NoStringCompress},
		{name: "compressed allowed", flags: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &PingResponse{
				Flags:         tt.flags,
				SessionKey:    SessionKey(5, 99),
				VersionString: VersionString,
				CurrentProto:  CurrentProtocolVersion,
				MinProto:      MinRequiredProtocolVersion,
				Build:         BuildVersion,
				Name:          "Marble Arena",
			}
			r, h := decodeHeader(t, in.Encode(), GamePingResponse)
			out, err := DecodePingResponse(r, h)
			if err != nil {
				t.Fatalf("DecodePingResponse: %v", err)
			}
			if !reflect.DeepEqual(in, out) {
				t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
			}
		})
	}
}

func TestPingResponseTruncatesName(t *testing.T) {
	in := &PingResponse{
		Flags:         NoStringCompress,
		VersionString: VersionString,
		Name:          "A very long server name that exceeds the cap",
	}
	r, h := decodeHeader(t, in.Encode(), GamePingResponse)
	out, err := DecodePingResponse(r, h)
	if err != nil {
		t.Fatalf("DecodePingResponse: %v", err)
	}
	if len(out.Name) != MaxServerNameLen {
		t.Errorf("name length = %d, want %d", len(out.Name), MaxServerNameLen)
	}
}

func TestInfoResponseRoundTrip(t *testing.T) {
	in := &InfoResponse{
		Flags:       NoStringCompress,
		SessionKey:  SessionKey(4, 8),
		GameType:    "multiplayer",
		MissionType: "ctf",
		MissionName: "ctf_canyon",
		Status:      0x60, // dedicated | passworded
		NumPlayers:  5,
		MaxPlayers:  16,
		NumBots:     2,
		CPUSpeed:    3200,
		Info:        "welcome",
		Content:     "round 3 of 5\nscore 2-1",
	}
	r, h := decodeHeader(t, in.Encode(), GameInfoResponse)
	out, err := DecodeInfoResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeInfoResponse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestMasterInfoResponseRoundTrip(t *testing.T) {
	in := &MasterInfoResponse{
		SessionKey:  SessionKey(9, 1),
		GameType:    "multiplayer",
		MissionType: "dm",
		InviteCode:  "XK42",
		MaxPlayers:  14,
		RegionMask:  2,
		Version:     BuildVersion,
		Status:      0x20,
		NumBots:     0,
		CPUSpeed:    2400,
		GUIDs:       []uint32{1001, 1002, 0, 0},
	}
	r, h := decodeHeader(t, in.Encode(), GameMasterInfoResponse)
	out, err := DecodeMasterInfoResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeMasterInfoResponse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestHeaderOnlyMessages(t *testing.T) {
	data := HeaderOnly(GameHeartbeat, 0, SessionKey(7, 0))
	r := codec.NewReader(data)
	h, err := ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Type != GameHeartbeat {
		t.Errorf("type = %d", h.Type)
	}
	if r.Remaining() != 0 {
		t.Errorf("heartbeat has %d body bytes, want 0", r.Remaining())
	}
}

func TestNATMessageRoundTrips(t *testing.T) {
	target := netaddr.Addr{IP: [4]byte{203, 0, 113, 5}, Port: 28000}

	arr := &ArrangedConnectRequest{SessionKey: SessionKey(1, 2), Target: target}
	r, h := decodeHeader(t, arr.Encode(), MasterServerRequestArrangedConnection)
	gotArr, err := DecodeArrangedConnectRequest(r, h)
	if err != nil || !reflect.DeepEqual(arr, gotArr) {
		t.Errorf("arranged connect round trip: %+v, %v", gotArr, err)
	}

	offer := &ArrangedConnectOffer{
		ClientID: 12,
		Candidates: []netaddr.Addr{
			target,
			{IP: [4]byte{192, 168, 1, 4}, Port: 28000},
		},
	}
	r, h = decodeHeader(t, offer.Encode(MasterServerClientRequestedArrangedConnection),
		MasterServerClientRequestedArrangedConnection)
	gotOffer, err := DecodeArrangedConnectOffer(r, h)
	if err != nil || !reflect.DeepEqual(offer, gotOffer) {
		t.Errorf("offer round trip: %+v, %v", gotOffer, err)
	}

	relay := &RelayResponse{IsHost: true, Relay: target}
	r, h = decodeHeader(t, relay.Encode(), MasterServerRelayResponse)
	gotRelay, err := DecodeRelayResponse(r, h)
	if err != nil || !reflect.DeepEqual(relay, gotRelay) {
		t.Errorf("relay round trip: %+v, %v", gotRelay, err)
	}

	inv := &JoinInvite{Code: "XK42"}
	r, h = decodeHeader(t, inv.Encode(), MasterServerJoinInvite)
	gotInv, err := DecodeJoinInvite(r, h)
	if err != nil || !reflect.DeepEqual(inv, gotInv) {
		t.Errorf("invite round trip: %+v, %v", gotInv, err)
	}

	invResp := &JoinInviteResponse{Found: true, Host: netaddr.Broadcast(28000)}
	r, h = decodeHeader(t, invResp.Encode(), MasterServerJoinInviteResponse)
	gotInvResp, err := DecodeJoinInviteResponse(r, h)
	if err != nil || !reflect.DeepEqual(invResp, gotInvResp) {
		t.Errorf("invite response round trip: %+v, %v", gotInvResp, err)
	}

	fwd := &ForwardedQuery{Flags: OnlineQuery, SessionKey: SessionKey(2, 9), Target: target}
	r, h = decodeHeader(t, fwd.Encode(MasterServerGamePingRequest), MasterServerGamePingRequest)
	gotFwd, err := DecodeForwardedQuery(r, h)
	if err != nil || !reflect.DeepEqual(fwd, gotFwd) {
		t.Errorf("forwarded query round trip: %+v, %v", gotFwd, err)
	}

	reply := &ForwardedReply{Origin: target, Inner: []byte{1, 2, 3, 4}}
	r, h = decodeHeader(t, reply.Encode(MasterServerGamePingResponse), MasterServerGamePingResponse)
	gotReply, err := DecodeForwardedReply(r, h)
	if err != nil || !reflect.DeepEqual(reply, gotReply) {
		t.Errorf("forwarded reply round trip: %+v, %v", gotReply, err)
	}
}
