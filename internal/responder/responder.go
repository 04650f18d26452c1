// Package responder answers inbound discovery queries when this node is
// hosting: ping requests, info requests, the richer master-info variant,
// and invite-code joins. Replies echo the requester's flags and session
// token verbatim.
package responder

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/master"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/registry"
	"github.com/scout-project/scout/internal/transport"
	"github.com/scout-project/scout/internal/util"
)

// ContentHook produces the long-string content of an info response (match
// status, scores, whatever the host wants to publish).
type ContentHook func() string

// Responder answers discovery queries against the configured server
// identity. Inbound handling is rate limited so a query flood cannot
// starve the game loop.
type Responder struct {
	cfg     *config.Config
	conn    transport.Conn
	limiter *rate.Limiter
	logger  zerolog.Logger

	contentHook ContentHook
	cpuSpeed    uint32
}

// New creates a responder. The CPU clock rate is sampled once at startup.
func New(cfg *config.Config, conn transport.Conn) *Responder {
	return &Responder{
		cfg:     cfg,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(100), 200),
		logger:  util.ComponentLogger("responder"),
		cpuSpeed: util.CPUSpeedMHz(),
	}
}

// SetConn attaches the datagram channel after construction.
func (rsp *Responder) SetConn(conn transport.Conn) {
	rsp.conn = conn
}

// SetContentHook installs the info-content producer.
func (rsp *Responder) SetContentHook(hook ContentHook) {
	rsp.contentHook = hook
}

// accepting reports whether this node answers queries at all: it must be
// configured to accept connections, not be a single-player game, and have
// a public slot free.
func (rsp *Responder) accepting() bool {
	srv := rsp.cfg.GetServer()
	if !srv.AcceptsConns {
		return false
	}
	if strings.EqualFold(srv.ServerType, "SinglePlayer") {
		return false
	}
	if srv.PlayerCount >= srv.MaxPlayers-srv.PrivateSlots {
		return false
	}
	return true
}

// HandleRequest routes one request-side packet.
func (rsp *Responder) HandleRequest(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	if !rsp.limiter.Allow() {
		return
	}

	switch h.Type {
	case protocol.GamePingRequest:
		rsp.handlePingRequest(from, h)
	case protocol.GameInfoRequest:
		rsp.handleInfoRequest(from, h)
	case protocol.GameMasterInfoRequest:
		rsp.handleMasterInfoRequest(from, h)
	case protocol.MasterServerJoinInvite:
		rsp.handleJoinInvite(from, h, r)
	}
}

func (rsp *Responder) handlePingRequest(from netaddr.Addr, h protocol.Header) {
	if !rsp.accepting() {
		return
	}
	// Online servers do not answer offline queries.
	if h.Flags&protocol.OfflineQuery != 0 {
		return
	}

	srv := rsp.cfg.GetServer()
	resp := &protocol.PingResponse{
		Flags:         h.Flags,
		SessionKey:    h.SessionKey,
		VersionString: protocol.VersionString,
		CurrentProto:  protocol.CurrentProtocolVersion,
		MinProto:      protocol.MinRequiredProtocolVersion,
		Build:         protocol.BuildVersion,
		Name:          srv.Name,
	}
	if err := rsp.conn.Send(from, resp.Encode()); err != nil {
		return
	}
	rsp.logger.Trace().Str("remote", from.String()).Msg("answered ping request")
}

func (rsp *Responder) handleInfoRequest(from netaddr.Addr, h protocol.Header) {
	if !rsp.accepting() {
		return
	}
	if h.Flags&protocol.OfflineQuery != 0 {
		return
	}

	srv := rsp.cfg.GetServer()
	content := ""
	if rsp.contentHook != nil {
		content = rsp.contentHook()
	}

	resp := &protocol.InfoResponse{
		Flags:       h.Flags,
		SessionKey:  h.SessionKey,
		GameType:    srv.GameType,
		MissionType: srv.MissionType,
		MissionName: srv.MissionName,
		Status:      uint8(rsp.statusBits(srv)),
		NumPlayers:  uint8(srv.PlayerCount),
		MaxPlayers:  uint8(srv.MaxPlayers),
		NumBots:     uint8(srv.BotCount),
		CPUSpeed:    uint16(rsp.cpuSpeed),
		Info:        srv.Info,
		Content:     content,
	}
	if err := rsp.conn.Send(from, resp.Encode()); err != nil {
		return
	}
	rsp.logger.Trace().Str("remote", from.String()).Msg("answered info request")
}

func (rsp *Responder) handleMasterInfoRequest(from netaddr.Addr, h protocol.Header) {
	if !rsp.accepting() {
		return
	}

	srv := rsp.cfg.GetServer()
	dir := master.Parse(rsp.cfg.GetClient().Masters)
	fromMaster := dir.Contains(from)
	rsp.logger.Info().
		Str("remote", from.String()).
		Bool("from_master", fromMaster).
		Msg("received info request")

	status := rsp.statusBits(srv)
	if srv.PrivateSlots > 0 {
		status |= registry.StatusPrivate
	}

	resp := &protocol.MasterInfoResponse{
		Flags:       h.Flags,
		SessionKey:  h.SessionKey,
		GameType:    srv.GameType,
		MissionType: srv.MissionType,
		InviteCode:  srv.InviteCode,
		MaxPlayers:  uint8(srv.MaxPlayers - srv.PrivateSlots),
		RegionMask:  srv.RegionMask,
		Version:     protocol.BuildVersion,
		Status:      uint8(status),
		NumBots:     uint8(srv.BotCount),
		CPUSpeed:    rsp.cpuSpeed,
		GUIDs:       guidList(srv.GuidList, srv.PlayerCount),
	}
	_ = rsp.conn.Send(from, resp.Encode())
}

// handleJoinInvite answers when the broadcast invite code matches ours.
// The broadcast-sentinel host tells the joiner to use our sender address.
func (rsp *Responder) handleJoinInvite(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	inv, err := protocol.DecodeJoinInvite(r, h)
	if err != nil {
		rsp.logger.Debug().Err(err).Msg("dropping malformed join invite")
		return
	}

	srv := rsp.cfg.GetServer()
	if srv.InviteCode == "" || srv.InviteCode != inv.Code {
		return
	}

	resp := &protocol.JoinInviteResponse{
		Flags:      h.Flags,
		SessionKey: h.SessionKey,
		Found:      true,
		Host:       netaddr.Broadcast(rsp.cfg.GetClient().QueryPort),
	}
	_ = rsp.conn.Send(from, resp.Encode())
	rsp.logger.Info().Str("remote", from.String()).Msg("answered join invite")
}

// statusBits assembles the server-published attribute bits.
func (rsp *Responder) statusBits(srv config.ServerData) registry.Status {
	var status registry.Status
	if util.IsLinux() {
		status |= registry.StatusLinux
	}
	if srv.Dedicated {
		status |= registry.StatusDedicated
	}
	if srv.Password != "" {
		status |= registry.StatusPassworded
	}
	return status
}

// guidList parses the tab-separated configured GUID list and pads it with
// zeros to playerCount.
func guidList(raw string, playerCount int) []uint32 {
	if playerCount <= 0 {
		return nil
	}
	out := make([]uint32, 0, playerCount)
	for _, tok := range strings.Split(raw, "\t") {
		if len(out) >= playerCount {
			break
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		g, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, uint32(g))
	}
	for len(out) < playerCount {
		out = append(out, 0)
	}
	return out
}
