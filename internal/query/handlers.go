package query

import (
	"context"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/events"
	"github.com/scout-project/scout/internal/filter"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/pending"
	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/registry"
)

// RequestHandler answers request-side packets (the responder). The engine
// only consumes responses; requests are routed past it.
type RequestHandler interface {
	HandleRequest(from netaddr.Addr, h protocol.Header, r *codec.Reader)
}

// Dispatcher routes inbound datagrams: response packets feed the engine,
// request packets feed the responder, NAT packets feed the NAT handler.
type Dispatcher struct {
	Engine    *Engine
	Responder RequestHandler
	NAT       RequestHandler
}

// Dispatch parses the common header and routes one datagram. Malformed
// packets are dropped.
func (d *Dispatcher) Dispatch(from netaddr.Addr, payload []byte) {
	r := codec.NewReader(payload)
	h, err := protocol.ReadHeader(r)
	if err != nil {
		d.Engine.logger.Debug().Str("from", from.String()).Err(err).Msg("dropping malformed packet")
		return
	}

	switch h.Type {
	case protocol.GamePingResponse:
		d.Engine.handlePingResponse(from, h, r)
	case protocol.GameInfoResponse:
		d.Engine.handleInfoResponse(from, h, r)
	case protocol.MasterServerListResponse:
		d.Engine.handleListResponse(from, h, r)
	case protocol.MasterServerGameTypesResponse:
		d.Engine.handleGameTypesResponse(from, h, r)

	case protocol.GamePingRequest, protocol.GameInfoRequest,
		protocol.GameMasterInfoRequest, protocol.MasterServerJoinInvite:
		if d.Responder != nil {
			d.Responder.HandleRequest(from, h, r)
		}

	case protocol.MasterServerGamePingResponse, protocol.MasterServerGameInfoResponse:
		// A master relayed a reply from a peer we could not reach directly:
		// unwrap and dispatch the inner packet as if it came from the origin.
		reply, err := protocol.DecodeForwardedReply(r, h)
		if err != nil {
			d.Engine.logger.Debug().Err(err).Msg("dropping malformed forwarded reply")
			return
		}
		d.Dispatch(reply.Origin, reply.Inner)

	case protocol.MasterServerClientRequestedArrangedConnection,
		protocol.MasterServerArrangedConnectionAccepted,
		protocol.MasterServerArrangedConnectionRejected,
		protocol.MasterServerRelayResponse,
		protocol.MasterServerRelayReady,
		protocol.MasterServerJoinInviteResponse:
		if d.NAT != nil {
			d.NAT.HandleRequest(from, h, r)
		}

	default:
		d.Engine.logger.Debug().
			Uint8("type", h.Type).
			Str("from", from.String()).
			Msg("unknown packet type")
	}
}

// dropCandidate removes a pinged server from consideration: the address is
// finished, the pending entry removed, and the registry record either
// marked timed out or deleted.
func (e *Engine) dropCandidate(idx int, addr netaddr.Addr, remove bool, waitingForMaster bool) {
	e.finished.Add(addr)
	e.pings.Remove(idx)
	if remove {
		if e.servers.Remove(addr) {
			e.markDirty()
			e.emitServerRemoved(addr)
		}
	} else if si := e.servers.Find(addr); si != nil {
		si.Status = registry.StatusTimedOut
		e.markDirty()
	}
	if !waitingForMaster {
		e.updatePingProgress()
	}
}

func (e *Engine) emitServerRemoved(addr netaddr.Addr) {
	if e.bus != nil {
		e.bus.Emit(context.Background(), events.Event{
			Type:    events.EventServerRemoved,
			Source:  "query",
			Payload: events.ServerPayload{Address: addr},
		})
	}
}

// handlePingResponse validates and applies a GamePingResponse. Unsolicited
// responses from unfinished addresses are LAN broadcast discoveries: the
// first one completes the ping exchange directly, without re-probing.
func (e *Engine) handlePingResponse(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pings.Len() == 0 && e.queries.Len() == 0 && !e.active {
		return
	}

	idx := e.pings.Find(from)
	anonymous := idx == -1
	broadcastIdx := -1
	if anonymous {
		if !e.active || e.finished.Contains(from) {
			return
		}
		// An unsolicited response is only acceptable when it echoes the
		// token of an outstanding broadcast probe; anything else is a
		// stale or forged datagram.
		for i := 0; i < e.pings.Len(); i++ {
			p := e.pings.At(i)
			if p.Broadcast && protocol.SessionKey(p.Session, p.Key) == h.SessionKey {
				broadcastIdx = i
				break
			}
		}
		if broadcastIdx == -1 {
			return
		}
	} else {
		p := e.pings.At(idx)
		if protocol.SessionKey(p.Session, p.Key) != h.SessionKey {
			return
		}
	}

	resp, err := protocol.DecodePingResponse(r, h)
	if err != nil {
		e.logger.Debug().Str("from", from.String()).Err(err).Msg("dropping malformed ping response")
		return
	}

	waitingForMaster := e.filter.Type == filter.Normal && !e.gotFirstListPacket

	si := e.servers.Find(from)
	applyFilter := false
	if e.filter.Filtered() {
		applyFilter = si == nil || !si.IsUpdating()
	}

	drop := func(remove bool) {
		if anonymous {
			e.finished.Add(from)
			if remove && e.servers.Remove(from) {
				e.markDirty()
				e.emitServerRemoved(from)
			}
			return
		}
		e.dropCandidate(idx, from, remove, waitingForMaster)
	}

	// Verify the version tag.
	if resp.VersionString != protocol.VersionString {
		e.logger.Info().Str("server", from.String()).Msg("server is a different version")
		drop(false)
		return
	}
	// The peer must meet our minimum protocol.
	if resp.CurrentProto < protocol.MinRequiredProtocolVersion {
		e.logger.Info().Str("server", from.String()).Msg("protocol for server does not meet minimum protocol")
		drop(false)
		return
	}
	// We must meet the peer's minimum protocol.
	if protocol.CurrentProtocolVersion < resp.MinProto {
		e.logger.Info().Str("server", from.String()).Msg("we do not meet the minimum protocol for server")
		drop(false)
		return
	}

	// Round-trip time: an unsolicited response correlates with the
	// outstanding broadcast probe when one exists.
	now := e.now()
	var sentAt uint32
	isLocal := true
	if !anonymous {
		p := e.pings.At(idx)
		sentAt = p.Time
		isLocal = p.IsLocal
	} else {
		sentAt = e.pings.At(broadcastIdx).Time
	}
	var rtt uint32
	if sentAt > 0 && now > sentAt {
		rtt = now - sentAt
	}

	if applyFilter && !e.filter.CheckPing(rtt) {
		e.logger.Info().Str("server", from.String()).Msg("server filtered out by maximum ping")
		drop(true)
		return
	}

	// Build version must match exactly.
	if resp.Build != protocol.BuildVersion {
		e.logger.Info().Str("server", from.String()).Msg("server filtered out by version number")
		drop(true)
		return
	}

	if si == nil {
		si = e.servers.FindOrCreate(from)
	}
	si.Ping = rtt
	si.Version = resp.Build
	si.IsLocal = isLocal
	if si.Name == "" {
		si.Name = resp.Name
	}

	// Ping exchange complete: promote to the info-query list.
	e.finished.Add(from)
	e.queries.Push(pending.Entry{
		Address:  from,
		Session:  e.session,
		TryCount: QueryRetries,
		IsLocal:  isLocal,
	})
	e.queryCount++
	if !anonymous {
		e.pings.Remove(idx)
	}
	if !waitingForMaster {
		e.updatePingProgress()
	}

	e.markDirty()
}

// handleInfoResponse validates and applies a GameInfoResponse, applying
// the client-side filters for fresh-list queries.
func (e *Engine) handleInfoResponse(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queries.Len() == 0 {
		return
	}
	idx := e.queries.Find(from)
	if idx == -1 {
		return
	}
	p := e.queries.At(idx)
	if protocol.SessionKey(p.Session, p.Key) != h.SessionKey {
		return
	}

	resp, err := protocol.DecodeInfoResponse(r, h)
	if err != nil {
		e.logger.Debug().Str("from", from.String()).Err(err).Msg("dropping malformed info response")
		return
	}

	// The server was kind enough to respond; the exchange is over.
	e.queries.Remove(idx)
	e.updateQueryProgress()

	si := e.servers.Find(from)
	if si == nil {
		return
	}

	isUpdate := si.IsUpdating()
	applyFilter := !isUpdate && e.filter.Filtered()

	si.GameType = resp.GameType
	si.MissionType = resp.MissionType
	si.MissionName = clipMissionExtension(resp.MissionName)
	si.Status = registry.Status(resp.Status) & registry.AttributeMask
	si.NumPlayers = resp.NumPlayers
	si.MaxPlayers = resp.MaxPlayers
	si.NumBots = resp.NumBots
	si.CPUSpeed = resp.CPUSpeed
	si.InfoString = resp.Info
	si.StatusString = resp.Content

	if applyFilter {
		if reason := e.filter.CheckInfo(si); reason != filter.RejectNone {
			e.logger.Info().
				Str("server", from.String()).
				Str("reason", string(reason)).
				Msg("server filtered out")
			e.servers.Remove(from)
			e.markDirty()
			e.emitServerRemoved(from)
			return
		}
	}

	si.Status |= registry.StatusResponded
	e.markDirty()

	if e.bus != nil {
		e.bus.Emit(context.Background(), events.Event{
			Type:   events.EventServerFound,
			Source: "query",
			Payload: events.ServerPayload{
				Address: si.Address,
				Name:    si.Name,
				Ping:    si.Ping,
			},
		})
	}
}

// clipMissionExtension cuts the reported mission name at the first ".mis"
// it contains, dropping the mission-file extension and anything after it.
func clipMissionExtension(name string) string {
	for i := 0; i+4 <= len(name); i++ {
		if name[i:i+4] == ".mis" {
			return name[:i]
		}
	}
	return name
}

// handleListResponse applies one page of a master server list. The first
// page validates against the master fetch key; later pages validate
// against their per-page keys.
func (e *Engine) handleListResponse(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return
	}

	resp, err := protocol.DecodeListResponse(r, h)
	if err != nil {
		e.logger.Debug().Str("from", from.String()).Err(err).Msg("dropping malformed list response")
		return
	}

	packetKey := e.masterPing.Key
	if e.gotFirstListPacket {
		if i := e.packets.Find(resp.PacketIndex); i != -1 {
			packetKey = e.packets.At(i).Key
		}
	}
	if protocol.SessionKey(e.session, packetKey) != h.SessionKey {
		return
	}

	e.logger.Info().
		Uint8("page", resp.PacketIndex+1).
		Uint8("total", resp.PacketTotal).
		Int("servers", len(resp.Servers)).
		Msg("received server list packet from the master server")

	for i, addr := range resp.Servers {
		if resp.Flags != 0 && i == 0 {
			// The master is reporting our own public address.
			e.localAddrs.Add(addr)
		}
		e.pushPingRequest(addr)
	}

	if !e.gotFirstListPacket {
		e.gotFirstListPacket = true
		e.masterQueryAddr = e.masterPing.Address
		now := e.now()
		for i := uint8(0); i < resp.PacketTotal; i++ {
			if i != resp.PacketIndex {
				e.packets.Push(pending.PacketStatus{
					Index:    i,
					Key:      e.masterPing.Key,
					Time:     now,
					TryCount: PacketRetries,
				})
			}
		}
		if e.packets.Len() > 0 {
			e.schedulePacketTick()
		}
		// Enter the ping fan-out.
		e.processPingsAndQueriesLocked(e.session)
	} else if i := e.packets.Find(resp.PacketIndex); i != -1 {
		e.packets.Remove(i)
	}
}

// handleGameTypesResponse forwards the master's game and mission type
// lists to the registered sink.
func (e *Engine) handleGameTypesResponse(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	e.mu.Lock()
	sink := e.gameTypesSink
	e.mu.Unlock()

	resp, err := protocol.DecodeGameTypesResponse(r, h)
	if err != nil {
		e.logger.Debug().Str("from", from.String()).Err(err).Msg("dropping malformed game types response")
		return
	}

	e.logger.Info().
		Int("games", len(resp.GameTypes)).
		Int("missions", len(resp.MissionTypes)).
		Msg("received game type list from the master server")

	if sink != nil {
		sink.GameTypes(resp.GameTypes, resp.MissionTypes)
	}
}
