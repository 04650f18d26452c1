package responder

import (
	"testing"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/transport"
)

var requester = netaddr.Addr{IP: [4]byte{10, 1, 1, 1}, Port: 30000}
var hostAddr = netaddr.Addr{IP: [4]byte{10, 1, 1, 2}, Port: 28000}

func hostingConfig() *config.Config {
	return &config.Config{
		Server: config.ServerData{
			Name:         "Test Host",
			MaxPlayers:   16,
			ServerType:   "MultiPlayer",
			GameType:     "multiplayer",
			MissionType:  "ctf",
			MissionName:  "canyon",
			AcceptsConns: true,
			InviteCode:   "XK42",
		},
		Client: config.ClientData{QueryPort: 28000},
	}
}

// testRig wires a responder to the in-memory fabric and captures replies.
type testRig struct {
	rsp     *Responder
	net     *transport.Network
	replies [][]byte
}

func newRig(cfg *config.Config) *testRig {
	rig := &testRig{net: transport.NewNetwork()}
	rig.net.Attach(requester, func(from netaddr.Addr, payload []byte) {
		rig.replies = append(rig.replies, payload)
	})
	rig.rsp = New(cfg, nil)
	conn := rig.net.Attach(hostAddr, nil)
	rig.rsp.SetConn(conn)
	return rig
}

func (rig *testRig) request(payload []byte) {
	r := codec.NewReader(payload)
	h, err := protocol.ReadHeader(r)
	if err != nil {
		panic(err)
	}
	rig.rsp.HandleRequest(requester, h, r)
	rig.net.Pump()
}

func TestPingResponseEchoesKey(t *testing.T) {
	rig := newRig(hostingConfig())
	token := protocol.SessionKey(7, 0xABCD)

	rig.request(protocol.HeaderOnly(protocol.GamePingRequest, protocol.NoStringCompress, token))

	if len(rig.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(rig.replies))
	}
	r := codec.NewReader(rig.replies[0])
	h, err := protocol.ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Type != protocol.GamePingResponse {
		t.Fatalf("reply type = %d", h.Type)
	}
	if h.SessionKey != token {
		t.Errorf("echoed token = %#x, want %#x", h.SessionKey, token)
	}
	if h.Flags != protocol.NoStringCompress {
		t.Errorf("echoed flags = %#x", h.Flags)
	}

	resp, err := protocol.DecodePingResponse(r, h)
	if err != nil {
		t.Fatalf("DecodePingResponse: %v", err)
	}
	if resp.VersionString != protocol.VersionString {
		t.Errorf("version string = %q", resp.VersionString)
	}
	if resp.Name != "Test Host" {
		t.Errorf("server name = %q", resp.Name)
	}
}

func TestNoResponseCases(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		flags  uint8
	}{
		{
			name:   "not accepting connections",
			mutate: func(c *config.Config) { c.Server.AcceptsConns = false },
		},
		{
			name:   "single player",
			mutate: func(c *config.Config) { c.Server.ServerType = "SinglePlayer" },
		},
		{
			name: "no public slots free",
			mutate: func(c *config.Config) {
				c.Server.PlayerCount = 14
				c.Server.PrivateSlots = 2
			},
		},
		{
			name:   "offline query ignored",
			mutate: func(c *config.Config) {},
			flags:  protocol.OfflineQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := hostingConfig()
			tt.mutate(cfg)
			rig := newRig(cfg)

			rig.request(protocol.HeaderOnly(protocol.GamePingRequest, tt.flags, 1))
			rig.request(protocol.HeaderOnly(protocol.GameInfoRequest, tt.flags, 2))

			if len(rig.replies) != 0 {
				t.Errorf("replies = %d, want 0", len(rig.replies))
			}
		})
	}
}

func TestInfoResponseFields(t *testing.T) {
	cfg := hostingConfig()
	cfg.Server.PlayerCount = 5
	cfg.Server.BotCount = 2
	cfg.Server.Password = "secret"
	cfg.Server.Dedicated = true
	rig := newRig(cfg)
	rig.rsp.SetContentHook(func() string { return "round 2 of 5" })

	rig.request(protocol.HeaderOnly(protocol.GameInfoRequest, protocol.NoStringCompress, 3))

	if len(rig.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(rig.replies))
	}
	r := codec.NewReader(rig.replies[0])
	h, _ := protocol.ReadHeader(r)
	resp, err := protocol.DecodeInfoResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeInfoResponse: %v", err)
	}
	if resp.GameType != "multiplayer" || resp.MissionType != "ctf" {
		t.Errorf("types = %q/%q", resp.GameType, resp.MissionType)
	}
	if resp.NumPlayers != 5 || resp.MaxPlayers != 16 || resp.NumBots != 2 {
		t.Errorf("counts = %d/%d/%d", resp.NumPlayers, resp.MaxPlayers, resp.NumBots)
	}
	if resp.Status&0x40 == 0 { // passworded bit
		t.Error("passworded bit not set")
	}
	if resp.Status&0x20 == 0 { // dedicated bit
		t.Error("dedicated bit not set")
	}
	if resp.Content != "round 2 of 5" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestMasterInfoGUIDPadding(t *testing.T) {
	cfg := hostingConfig()
	cfg.Server.PlayerCount = 4
	cfg.Server.PrivateSlots = 2
	cfg.Server.GuidList = "1001\t1002"
	rig := newRig(cfg)

	rig.request(protocol.HeaderOnly(protocol.GameMasterInfoRequest, 0, 4))

	if len(rig.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(rig.replies))
	}
	r := codec.NewReader(rig.replies[0])
	h, _ := protocol.ReadHeader(r)
	resp, err := protocol.DecodeMasterInfoResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeMasterInfoResponse: %v", err)
	}
	if resp.MaxPlayers != 14 {
		t.Errorf("max players = %d, want 14 (private slots excluded)", resp.MaxPlayers)
	}
	if resp.InviteCode != "XK42" {
		t.Errorf("invite code = %q", resp.InviteCode)
	}
	want := []uint32{1001, 1002, 0, 0}
	if len(resp.GUIDs) != len(want) {
		t.Fatalf("guids = %v, want %v", resp.GUIDs, want)
	}
	for i := range want {
		if resp.GUIDs[i] != want[i] {
			t.Errorf("guids = %v, want %v", resp.GUIDs, want)
			break
		}
	}
}

func TestJoinInvite(t *testing.T) {
	rig := newRig(hostingConfig())

	// Mismatched code: silence.
	bad := &protocol.JoinInvite{Code: "WRONG"}
	rig.request(bad.Encode())
	if len(rig.replies) != 0 {
		t.Fatalf("replies to wrong code = %d", len(rig.replies))
	}

	// Matching code: a response with the use-sender-address sentinel.
	good := &protocol.JoinInvite{Code: "XK42"}
	rig.request(good.Encode())
	if len(rig.replies) != 1 {
		t.Fatalf("replies to matching code = %d", len(rig.replies))
	}
	r := codec.NewReader(rig.replies[0])
	h, _ := protocol.ReadHeader(r)
	resp, err := protocol.DecodeJoinInviteResponse(r, h)
	if err != nil {
		t.Fatalf("DecodeJoinInviteResponse: %v", err)
	}
	if !resp.Found {
		t.Error("Found = false")
	}
	if !resp.Host.IsBroadcast() {
		t.Errorf("host = %v, want the broadcast sentinel", resp.Host)
	}
	if resp.Host.Port != 28000 {
		t.Errorf("host port = %d", resp.Host.Port)
	}
}
