// Package query implements the discovery engine: the state machine that
// fetches server lists from masters, fans out ping and info exchanges with
// bounded concurrency, and publishes presence heartbeats. All work is
// driven by scheduler ticks and inbound datagrams; the engine never blocks.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/events"
	"github.com/scout-project/scout/internal/filter"
	"github.com/scout-project/scout/internal/master"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/pending"
	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/registry"
	"github.com/scout-project/scout/internal/sched"
	"github.com/scout-project/scout/internal/transport"
	"github.com/scout-project/scout/internal/util"
)

// Timer defaults (virtual milliseconds) and retry budgets.
const (
	MasterTimeout     = 2000
	MasterRetries     = 3
	PacketTimeout     = 1000
	PacketRetries     = 4
	PingTimeout       = 800
	PingRetries       = 4
	QueryTimeout      = 1000
	QueryRetries      = 4
	HeartbeatInterval = 10000

	tickGranularity   = 1  // ping/query/master ticks re-post at +1 virtual ms
	packetGranularity = 30 // list-page timer runs coarser
)

// GameTypesSink receives the master's game and mission type lists.
type GameTypesSink interface {
	GameTypes(games, missions []string)
}

// Engine owns all discovery state. One long-lived value is bound at
// startup; every operation goes through it.
type Engine struct {
	mu       sync.Mutex
	conn     transport.Conn
	sched    *sched.Scheduler
	cfg      *config.Config
	progress ProgressSink
	bus      *events.EventBus
	logger   zerolog.Logger

	servers    *registry.Registry
	pings      pending.Table
	queries    pending.Table
	packets    pending.PacketList
	finished   netaddr.Set
	localAddrs netaddr.Set

	masters         *master.Directory
	masterPing      pending.Entry
	masterQueryAddr netaddr.Addr

	filter             filter.Spec
	session            uint16
	key                uint16
	active             bool
	gotFirstListPacket bool
	browserDirty       bool

	pingCount  int // non-broadcast pings issued this session, for progress
	queryCount int

	heartbeatSeq uint32

	maxPings   int
	maxQueries int
	natProfile bool

	gameTypesSink GameTypesSink
}

// New creates the engine. Concurrency caps and the NAT profile come from
// the engine section of the config.
func New(conn transport.Conn, sch *sched.Scheduler, cfg *config.Config, progress ProgressSink) *Engine {
	if progress == nil {
		progress = NopSink{}
	}
	tunables := cfg.GetEngine()
	maxPings := tunables.MaxConcurrentPings
	if maxPings <= 0 {
		maxPings = 10
	}
	maxQueries := tunables.MaxConcurrentQueries
	if maxQueries <= 0 {
		maxQueries = 2
	}
	return &Engine{
		conn:       conn,
		sched:      sch,
		cfg:        cfg,
		progress:   progress,
		logger:     util.ComponentLogger("query"),
		servers:    registry.New(),
		filter:     filter.Default(),
		maxPings:   maxPings,
		maxQueries: maxQueries,
		natProfile: tunables.NATProfile,
	}
}

// SetConn attaches the datagram channel. The transport's read loop needs
// the dispatcher (and thus the engine) before the socket exists, so the
// conn is bound after construction.
func (e *Engine) SetConn(conn transport.Conn) {
	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()
}

// SetEventBus attaches the bus for browser-change notifications.
func (e *Engine) SetEventBus(bus *events.EventBus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// SetGameTypesSink attaches the consumer for game-type list responses.
func (e *Engine) SetGameTypesSink(sink GameTypesSink) {
	e.mu.Lock()
	e.gameTypesSink = sink
	e.mu.Unlock()
}

// LANQuery are the arguments of a LAN discovery query.
type LANQuery struct {
	Port            uint16
	Flags           uint8
	GameType        string
	MissionType     string
	MinPlayers      uint8
	MaxPlayers      uint8
	MaxBots         uint8
	RegionMask      uint32
	MaxPing         uint32
	MinCPU          uint16
	FilterFlags     uint8
	ClearServerInfo bool
	UseFilters      bool
}

// MasterQuery are the arguments of a master-directory query.
type MasterQuery struct {
	LANPort     uint16
	Flags       uint8
	GameType    string
	MissionType string
	MinPlayers  uint8
	MaxPlayers  uint8
	MaxBots     uint8
	RegionMask  uint32
	MaxPing     uint32
	MinCPU      uint16
	FilterFlags uint8
	BuddyList   []uint32
}

// QueryLAN starts a broadcast discovery of the local network.
func (e *Engine) QueryLAN(q LANQuery) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearServerList(q.ClearServerInfo)
	e.active = true
	e.pushFavorites()

	ftype := filter.Offline
	if q.UseFilters {
		ftype = filter.OfflineFiltered
	}
	e.filter = filter.Spec{
		Type:        ftype,
		GameType:    q.GameType,
		MissionType: q.MissionType,
		MinPlayers:  q.MinPlayers,
		MaxPlayers:  q.MaxPlayers,
		MaxBots:     q.MaxBots,
		RegionMask:  q.RegionMask,
		MaxPing:     q.MaxPing,
		MinCPU:      q.MinCPU,
		FilterFlags: q.FilterFlags,
	}

	e.pushPingBroadcast(netaddr.Broadcast(q.Port))

	e.progress.Start("Querying LAN servers")
	e.scheduleTick()
}

// QueryMasters starts a master-directory discovery. A non-empty buddy list
// turns it into a buddy search performed by the master; otherwise the
// favorites and a LAN broadcast probe are queued and are serviced once the
// first list page arrives or every master has timed out.
func (e *Engine) QueryMasters(q MasterQuery) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearServerList(true)
	e.active = true
	e.gotFirstListPacket = false

	e.progress.Start("Querying master server")

	if len(q.BuddyList) == 0 {
		e.filter = filter.Spec{
			Type:        filter.Normal,
			GameType:    q.GameType,
			MissionType: q.MissionType,
			QueryFlags:  q.Flags,
			MinPlayers:  q.MinPlayers,
			MaxPlayers:  q.MaxPlayers,
			MaxBots:     q.MaxBots,
			RegionMask:  q.RegionMask,
			MaxPing:     q.MaxPing,
			MinCPU:      q.MinCPU,
			FilterFlags: q.FilterFlags,
		}
		e.pushFavorites()
		e.pushPingBroadcast(netaddr.Broadcast(q.LANPort))
	} else {
		e.filter = filter.Spec{
			Type:       filter.Buddy,
			QueryFlags: q.Flags,
			MaxPlayers: 255,
			MaxBots:    16,
			RegionMask: q.RegionMask,
			BuddyList:  append([]uint32(nil), q.BuddyList...),
		}
	}

	// Fresh working copy of the configured masters for this session.
	e.masters = master.Parse(e.cfg.GetClient().Masters)
	e.masterPing = pending.Entry{Session: e.session, TryCount: MasterRetries}

	if !e.pickMaster() {
		e.logger.Error().Msg("no master servers found")
		// Degrade to whatever is already queued (LAN broadcast, favorites).
		e.gotFirstListPacket = true
		e.scheduleTick()
		return
	}
	e.scheduleMasterTick()
}

// QueryFavorites refreshes the favorites list only.
func (e *Engine) QueryFavorites() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearServerList(true)
	e.active = true
	e.filter = filter.Default()
	e.filter.Type = filter.Favorites
	e.pushFavorites()

	e.progress.Start("Query favorites...")
	e.scheduleTick()
}

// QuerySingle refreshes one server. The record keeps its place in the
// browser; filters do not apply to a refresh.
func (e *Engine) QuerySingle(addr netaddr.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = true
	e.gotFirstListPacket = true // no master fetch gates a single refresh
	if si := e.servers.Find(addr); si != nil {
		si.Status = registry.StatusNew | registry.StatusUpdating
	}
	e.finished.Remove(addr)

	e.progress.Start("Refreshing server...")
	e.pingCount = 0
	e.queryCount = 0
	e.pushPingRequest(addr)
	e.scheduleTick()
}

// QueryMasterGameTypes asks one configured master for its game and mission
// type lists.
func (e *Engine) QueryMasterGameTypes() {
	e.mu.Lock()
	defer e.mu.Unlock()

	dir := master.Parse(e.cfg.GetClient().Masters)
	m, ok := dir.Pick(e.now(), e.cfg.GetClient().RegionMask)
	if !ok {
		e.logger.Error().Msg("no master servers found")
		return
	}
	e.logger.Info().Str("master", m.Address.String()).Msg("requesting game types from the master server")
	e.send(m.Address, protocol.HeaderOnly(protocol.MasterServerGameTypesRequest, 0,
		protocol.SessionKey(e.session, e.nextKey())))
}

// Cancel drops the current query outright. Referenced servers that never
// responded are marked timed out; late datagrams from this session will
// find no pending entries.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

func (e *Engine) cancelLocked() {
	if !e.active {
		return
	}
	e.logger.Info().Msg("server query canceled")

	e.packets.Clear()

	for e.pings.Len() > 0 {
		entry := e.pings.Remove(0)
		if si := e.servers.Find(entry.Address); si != nil && !si.Status.Test(registry.StatusResponded) {
			si.Status = registry.StatusTimedOut
		}
	}
	for e.queries.Len() > 0 {
		entry := e.queries.Remove(0)
		if si := e.servers.Find(entry.Address); si != nil && !si.Status.Test(registry.StatusResponded) {
			si.Status = registry.StatusTimedOut
		}
	}

	e.active = false
	e.markDirty()
}

// Stop ends the query gently: outstanding pings are treated as complete
// and moved to the finished set; the info phase keeps running. With
// nothing outstanding it falls through to Cancel.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return
	}
	e.packets.Clear()

	if e.pings.Len() > 0 {
		for e.pings.Len() > 0 {
			entry := e.pings.Remove(0)
			e.finished.Add(entry.Address)
		}
	} else {
		e.cancelLocked()
	}
}

// ServerCount returns the number of registry records.
func (e *Engine) ServerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.servers.Len()
}

// Server returns a copy of the record at browser position i.
func (e *Engine) Server(i int) (registry.ServerInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	si := e.servers.At(i)
	if si == nil {
		return registry.ServerInfo{}, false
	}
	return *si, true
}

// Servers returns a copy of every record in browser order.
func (e *Engine) Servers() []registry.ServerInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]registry.ServerInfo, 0, e.servers.Len())
	for _, si := range e.servers.All() {
		out = append(out, *si)
	}
	return out
}

// IsLocalAddress reports whether a master list page of this session
// reported addr as our own public address.
func (e *Engine) IsLocalAddress(addr netaddr.Addr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localAddrs.Contains(addr)
}

// Active reports whether a query session is in flight.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ConsumeDirty returns and clears the browser-dirty flag.
func (e *Engine) ConsumeDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.browserDirty
	e.browserDirty = false
	return d
}

// --- internal helpers (engine lock held) ---

func (e *Engine) now() uint32 {
	return e.sched.Clock().Now()
}

func (e *Engine) send(to netaddr.Addr, payload []byte) {
	if e.conn == nil {
		return
	}
	// A failed send is a lost datagram; the retry discipline covers it.
	_ = e.conn.Send(to, payload)
}

func (e *Engine) nextKey() uint16 {
	e.key++
	return e.key
}

func (e *Engine) markDirty() {
	e.browserDirty = true
	if e.bus != nil {
		e.bus.Emit(context.Background(), events.Event{
			Type:   events.EventBrowserDirty,
			Source: "query",
		})
	}
}

// clearServerList resets every per-session table and advances the session
// counter, invalidating all in-flight keys.
func (e *Engine) clearServerList(clearServerInfo bool) {
	e.packets.Clear()
	if clearServerInfo {
		e.servers.Clear()
	}
	e.finished.Clear()
	e.pings.Clear()
	e.queries.Clear()
	e.pingCount = 0
	e.queryCount = 0
	e.localAddrs.Clear()

	e.session++
}

func (e *Engine) pushPingRequest(addr netaddr.Addr) {
	if e.finished.Contains(addr) {
		return
	}
	if e.pings.Find(addr) != -1 || e.queries.Find(addr) != -1 {
		return
	}
	e.pings.Push(pending.Entry{
		Address:  addr,
		Session:  e.session,
		TryCount: PingRetries,
	})
	e.pingCount++
}

func (e *Engine) pushPingBroadcast(addr netaddr.Addr) {
	if e.finished.Contains(addr) {
		return
	}
	e.pings.Push(pending.Entry{
		Address:   addr,
		Session:   e.session,
		TryCount:  1, // one probe, no retry
		Broadcast: true,
		IsLocal:   true,
	})
	// Broadcasts are not counted as outstanding requests.
}

// pushFavorites reloads the favorites from config, pre-populating names
// before any ping response arrives.
func (e *Engine) pushFavorites() {
	for _, line := range e.cfg.GetClient().Favorites {
		name, addrText, ok := strings.Cut(line, "\t")
		if !ok || name == "" {
			continue
		}
		addr, err := netaddr.Parse(addrText)
		if err != nil {
			e.logger.Warn().Str("favorite", line).Err(err).Msg("bad favorite server address")
			continue
		}
		if len(name) > protocol.MaxServerNameLen {
			name = name[:protocol.MaxServerNameLen]
		}
		si := e.servers.FindOrCreate(addr)
		si.Name = name
		si.IsFavorite = true
		e.pushPingRequest(addr)
	}
}

// pickMaster resets the master ping state and selects the next master,
// preferring the configured region. Returns false when none remain.
func (e *Engine) pickMaster() bool {
	e.masterPing.Time = 0
	e.masterPing.Key = 0
	e.masterPing.TryCount = MasterRetries
	e.masterPing.Session = e.session

	m, ok := e.masters.Pick(e.now(), e.cfg.GetClient().RegionMask)
	if !ok {
		return false
	}
	e.masterPing.Address = m.Address
	e.logger.Info().Str("master", m.Address.String()).Msg("selected master server")
	return true
}

func (e *Engine) scheduleTick() {
	session := e.session
	e.sched.SubmitAfter(func() { e.processPingsAndQueries(session) }, tickGranularity)
}

func (e *Engine) scheduleMasterTick() {
	session := e.session
	e.sched.SubmitAfter(func() { e.processMasterQuery(session) }, tickGranularity)
}

func (e *Engine) schedulePacketTick() {
	session := e.session
	e.sched.SubmitAfter(func() { e.processListPackets(session) }, packetGranularity)
}

// processMasterQuery drives the MasterFetch phase: resend the list request
// on timeout, fail over to the next master when retries exhaust, and
// degrade to the ping phase when no masters remain.
func (e *Engine) processMasterQuery(session uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if session != e.session || !e.active || e.gotFirstListPacket {
		return
	}

	keepGoing := true
	now := e.now()
	if now == 0 {
		now = 1 // Time 0 marks a never-sent entry
	}

	if e.masterPing.Time == 0 || e.masterPing.Time+MasterTimeout < now {
		if e.masterPing.TryCount == 0 {
			e.logger.Info().
				Str("master", e.masterPing.Address.String()).
				Msg("server list request timed out")

			e.masters.Remove(e.masterPing.Address)
			keepGoing = e.pickMaster()
			if keepGoing {
				e.progress.Update("Switching master servers...")
			}
		}

		if keepGoing {
			e.masterPing.TryCount--
			e.masterPing.Time = now
			e.masterPing.Key = e.nextKey()

			req := &protocol.ListRequest{
				Flags:       e.filter.QueryFlags,
				SessionKey:  protocol.SessionKey(e.masterPing.Session, e.masterPing.Key),
				PacketIndex: protocol.AllPages,
				GameType:    e.filter.GameType,
				MissionType: e.filter.MissionType,
				MinPlayers:  e.filter.MinPlayers,
				MaxPlayers:  e.filter.MaxPlayers,
				RegionMask:  e.filter.RegionMask,
				Version:     protocol.BuildVersion,
				FilterFlags: e.filter.FilterFlags,
				MaxBots:     e.filter.MaxBots,
				MinCPU:      e.filter.MinCPU,
				BuddyList:   e.filter.BuddyList,
			}
			e.send(e.masterPing.Address, req.Encode())

			e.logger.Info().
				Str("master", e.masterPing.Address.String()).
				Uint32("tries_left", e.masterPing.TryCount).
				Msg("requesting the server list from master server")
			if e.masterPing.TryCount < MasterRetries-1 {
				e.progress.Update("Retrying the master server...")
			}
		}
	}

	if keepGoing {
		e.scheduleMasterTick()
	} else {
		e.logger.Error().Msg("there are no more master servers to try")
		// Degrade to LAN-only: service whatever is already queued.
		e.gotFirstListPacket = true
		e.processPingsAndQueriesLocked(e.session)
	}
}

// processPingsAndQueries drives the PingFanOut and QueryFanOut phases.
func (e *Engine) processPingsAndQueries(session uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processPingsAndQueriesLocked(session)
}

func (e *Engine) processPingsAndQueriesLocked(session uint16) {
	if session != e.session {
		return
	}

	now := e.now()
	if now == 0 {
		now = 1 // Time 0 marks a never-sent entry
	}
	waitingForMaster := e.filter.Type == filter.Normal && !e.gotFirstListPacket && e.active

	for i := 0; i < e.pings.Len() && i < e.maxPings; {
		p := e.pings.At(i)

		if p.Time == 0 || p.Time+PingTimeout < now {
			if p.TryCount == 0 {
				// Timed out. Broadcast probes expire silently.
				if !p.Broadcast {
					e.logger.Info().Str("server", p.Address.String()).Msg("ping to server timed out")
				}
				if si := e.servers.Find(p.Address); si != nil {
					si.Status = registry.StatusTimedOut
					e.markDirty()
				}
				e.finished.Add(p.Address)
				e.pings.Remove(i) // next candidate slides into this slot

				if !waitingForMaster {
					e.updatePingProgress()
				}
			} else {
				p.TryCount--
				p.Time = now
				p.Key = e.nextKey()

				if p.Broadcast {
					e.logger.Debug().Str("addr", p.Address.String()).Msg("LAN server ping")
				} else {
					e.logger.Debug().
						Str("server", p.Address.String()).
						Uint32("tries_left", p.TryCount).
						Msg("pinging server")
				}
				e.send(p.Address, protocol.HeaderOnly(protocol.GamePingRequest,
					protocol.OnlineQuery, protocol.SessionKey(p.Session, p.Key)))

				if e.natProfile && !p.Broadcast {
					e.forwardThroughMasters(protocol.MasterServerGamePingRequest, p)
				}
				i++
			}
		} else {
			i++
		}
	}

	if e.pings.Len() == 0 && !waitingForMaster {
		for i := 0; i < e.queries.Len() && i < e.maxQueries; {
			p := e.queries.At(i)

			if p.Time == 0 || p.Time+QueryTimeout < now {
				si := e.servers.Find(p.Address)
				if si == nil {
					// Record disappeared (filtered away); drop the query.
					e.queries.Remove(i)
					e.markDirty()
					continue
				}

				if p.TryCount == 0 {
					e.logger.Info().Str("server", p.Address.String()).Msg("query to server timed out")
					si.Status = registry.StatusTimedOut
					e.queries.Remove(i)
					e.markDirty()
				} else {
					p.TryCount--
					p.Time = now
					p.Key = e.nextKey()

					e.logger.Debug().
						Str("server", p.Address.String()).
						Uint32("tries_left", p.TryCount).
						Msg("querying server")
					e.send(p.Address, protocol.HeaderOnly(protocol.GameInfoRequest,
						protocol.OnlineQuery, protocol.SessionKey(p.Session, p.Key)))

					if e.natProfile && !p.Broadcast {
						e.forwardThroughMasters(protocol.MasterServerGameInfoRequest, p)
					}

					if !si.IsQuerying() {
						si.Status |= registry.StatusQuerying
						e.markDirty()
					}
					i++
				}
			} else {
				i++
			}
		}
	}

	// Done only when all three tables are empty: outstanding list pages
	// can still feed new candidates into the ping fan-out.
	if e.pings.Len() > 0 || e.queries.Len() > 0 || e.packets.Len() > 0 || waitingForMaster {
		e.scheduleTick()
		return
	}

	// All done. Inbound handlers can start a second tick chain; only the
	// first one to drain the tables reports completion.
	if !e.active {
		return
	}
	found := e.servers.Len()
	var msg string
	switch found {
	case 0:
		msg = "No servers found."
	case 1:
		msg = "One server found."
	default:
		msg = fmt.Sprintf("%d servers found.", found)
	}
	e.active = false
	e.progress.Done(msg, 1)
}

// forwardThroughMasters mirrors a direct request to every master in the
// working list of the most recent master query so it can be relayed to a
// peer we cannot reach through its NAT. Before any master query it sends
// nothing.
func (e *Engine) forwardThroughMasters(pktType uint8, p *pending.Entry) {
	if e.masters == nil {
		return
	}
	fwd := &protocol.ForwardedQuery{
		Flags:      protocol.OnlineQuery,
		SessionKey: protocol.SessionKey(p.Session, p.Key),
		Target:     p.Address,
	}
	payload := fwd.Encode(pktType)
	for _, m := range e.masters.All() {
		e.send(m.Address, payload)
	}
}

// processListPackets re-requests missing master list pages. Page requests
// reuse the session but carry an otherwise empty filter.
func (e *Engine) processListPackets(session uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if session != e.session || !e.active {
		return
	}

	now := e.now()

	for i := 0; i < e.packets.Len(); {
		p := e.packets.At(i)
		if p.Time+PacketTimeout < now {
			if p.TryCount == 0 {
				e.logger.Info().Uint8("page", p.Index+1).Msg("server list packet timed out")
				e.packets.Remove(i)
				continue
			}
			e.logger.Debug().Uint8("page", p.Index+1).Msg("rerequesting server list packet")
			p.TryCount--
			p.Time = now
			p.Key = e.nextKey()

			req := &protocol.ListRequest{
				Flags:       e.filter.QueryFlags,
				SessionKey:  protocol.SessionKey(session, p.Key),
				PacketIndex: p.Index,
			}
			e.send(e.masterQueryAddr, req.Encode())
		}
		i++
	}

	if e.packets.Len() > 0 {
		e.schedulePacketTick()
	} else {
		e.processPingsAndQueriesLocked(e.session)
	}
}

func (e *Engine) updatePingProgress() {
	if e.pings.Len() == 0 {
		e.updateQueryProgress()
		return
	}

	pingsLeft := e.pings.CountRequests()
	var msg string
	if pingsLeft == 0 && e.pings.Len() > 0 {
		msg = "Waiting for lan servers..."
	} else {
		msg = fmt.Sprintf("Pinging servers: %d left...", pingsLeft)
	}

	// Ping progress spans 0 -> 0.5.
	var progress float32
	if e.pingCount > 0 {
		progress = float32(e.pingCount-pingsLeft) / float32(e.pingCount*2)
	}
	e.progress.Ping(msg, progress)
}

func (e *Engine) updateQueryProgress() {
	if e.pings.Len() > 0 {
		return
	}

	queriesLeft := e.queries.Len()
	msg := fmt.Sprintf("Querying servers: %d left...", queriesLeft)

	// Query progress spans 0.5 -> 1.
	progress := float32(0.5)
	if e.queryCount > 0 {
		progress += float32(e.queryCount-queriesLeft) / float32(e.queryCount*2)
	}
	e.progress.Query(msg, progress)
}
