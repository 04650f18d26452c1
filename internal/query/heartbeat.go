package query

import (
	"context"

	"github.com/scout-project/scout/internal/events"
	"github.com/scout-project/scout/internal/master"
	"github.com/scout-project/scout/internal/protocol"
)

// StartHeartbeat begins periodic presence publication to every configured
// master. Each cycle is keyed by a sequence number; starting a new cycle
// invalidates scheduled sends from the old one.
func (e *Engine) StartHeartbeat() {
	e.mu.Lock()
	e.heartbeatSeq++
	seq := e.heartbeatSeq
	e.mu.Unlock()

	e.processHeartbeat(seq)
}

// StopHeartbeat halts presence publication. Bumping the sequence is
// enough: the pending scheduled send sees a stale sequence and returns.
func (e *Engine) StopHeartbeat() {
	e.mu.Lock()
	e.heartbeatSeq++
	e.mu.Unlock()
}

func (e *Engine) processHeartbeat(seq uint32) {
	e.mu.Lock()

	if seq != e.heartbeatSeq {
		e.mu.Unlock()
		return
	}

	e.sendHeartbeat(0)
	bus := e.bus
	masters := master.Parse(e.cfg.GetClient().Masters).Len()
	e.mu.Unlock()

	if bus != nil {
		bus.Emit(context.Background(), events.Event{
			Type:   events.EventHeartbeatSent,
			Source: "query",
			Payload: events.HeartbeatPayload{
				Sequence: seq,
				Masters:  masters,
			},
		})
	}

	e.sched.SubmitAfter(func() { e.processHeartbeat(seq) }, HeartbeatInterval)
}

// sendHeartbeat publishes presence to all configured masters. The
// configured list is re-read every cycle so config edits take effect
// without a restart. Engine lock held.
func (e *Engine) sendHeartbeat(flags uint8) {
	dir := master.Parse(e.cfg.GetClient().Masters)
	payload := protocol.HeaderOnly(protocol.GameHeartbeat, flags,
		protocol.SessionKey(e.session, 0))
	for _, m := range dir.All() {
		e.logger.Info().Str("master", m.Address.String()).Msg("sending heartbeat to master server")
		e.send(m.Address, payload)
	}
}
