// Package nat implements the optional NAT-traversal profile: arranged
// (hole-punched) connection setup mediated by masters, relay fallback, and
// invite-code joins. The actual game connection that follows a successful
// rendezvous is out of scope; results are delivered through ConnectSink.
package nat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/master"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/transport"
	"github.com/scout-project/scout/internal/util"
)

// ConnectSink receives rendezvous outcomes.
type ConnectSink interface {
	// ArrangedCandidates delivers the peer's candidate addresses for
	// synchronous connect attempts. isHost is true on the side that
	// initiated the arrangement.
	ArrangedCandidates(candidates []netaddr.Addr, isHost bool)
	// RelayReady reports that the relay endpoint accepted both sides.
	RelayReady(relay netaddr.Addr, isHost bool)
	// ConnectionRejected reports a failed introduction.
	ConnectionRejected(reason string)
	// InviteResult reports the outcome of an invite-code join. isLocal is
	// true when the host answered from the LAN.
	InviteResult(found bool, host netaddr.Addr, isLocal bool)
}

// Client drives the requester side of the NAT profile and answers the
// host-side arranged-connection offers.
type Client struct {
	mu     sync.Mutex
	cfg    *config.Config
	conn   transport.Conn
	sink   ConnectSink
	logger zerolog.Logger

	relayIsHost bool
}

// New creates a NAT client.
func New(cfg *config.Config, conn transport.Conn, sink ConnectSink) *Client {
	return &Client{
		cfg:    cfg,
		conn:   conn,
		sink:   sink,
		logger: util.ComponentLogger("nat"),
	}
}

// SetConn attaches the datagram channel after construction.
func (c *Client) SetConn(conn transport.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// ArrangeConnection asks every configured master to introduce us to the
// target's public address.
func (c *Client) ArrangeConnection(target netaddr.Addr) {
	req := &protocol.ArrangedConnectRequest{Target: target}
	payload := req.Encode()
	for _, m := range master.Parse(c.cfg.GetClient().Masters).All() {
		c.logger.Info().
			Str("master", m.Address.String()).
			Str("target", target.String()).
			Msg("sending arranged connect request to master server")
		_ = c.conn.Send(m.Address, payload)
	}
}

// RequestRelay asks every configured master for a relay endpoint to the
// target.
func (c *Client) RequestRelay(target netaddr.Addr) {
	req := &protocol.RelayRequest{Target: target}
	payload := req.Encode()
	for _, m := range master.Parse(c.cfg.GetClient().Masters).All() {
		_ = c.conn.Send(m.Address, payload)
	}
}

// JoinByInvite broadcasts the invite code to every master and the LAN.
func (c *Client) JoinByInvite(code string) {
	inv := &protocol.JoinInvite{Code: code}
	payload := inv.Encode()
	for _, m := range master.Parse(c.cfg.GetClient().Masters).All() {
		_ = c.conn.Send(m.Address, payload)
	}
	_ = c.conn.Send(netaddr.Broadcast(c.cfg.GetClient().QueryPort), payload)
}

// HandleRequest routes inbound NAT-profile packets.
func (c *Client) HandleRequest(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	switch h.Type {
	case protocol.MasterServerClientRequestedArrangedConnection:
		c.handleOffer(from, h, r)
	case protocol.MasterServerArrangedConnectionAccepted:
		c.handleAccepted(from, h, r)
	case protocol.MasterServerArrangedConnectionRejected:
		c.handleRejected(from, h, r)
	case protocol.MasterServerRelayResponse:
		c.handleRelayResponse(from, h, r)
	case protocol.MasterServerRelayReady:
		c.handleRelayReady(from)
	case protocol.MasterServerJoinInviteResponse:
		c.handleInviteResponse(from, h, r)
	}
}

// handleOffer is the host side of an arrangement: a master forwarded a
// joiner's candidate list. We acknowledge and start connect attempts.
func (c *Client) handleOffer(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	offer, err := protocol.DecodeArrangedConnectOffer(r, h)
	if err != nil {
		c.logger.Debug().Err(err).Msg("dropping malformed arranged connect offer")
		return
	}
	c.logger.Info().
		Uint16("client_id", offer.ClientID).
		Int("candidates", len(offer.Candidates)).
		Msg("received arranged connection request")

	accept := &protocol.ArrangedConnectAccept{
		Flags:      h.Flags,
		SessionKey: h.SessionKey,
		ClientID:   offer.ClientID,
	}
	_ = c.conn.Send(from, accept.Encode())

	if c.sink != nil {
		c.sink.ArrangedCandidates(offer.Candidates, false)
	}
}

func (c *Client) handleAccepted(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	offer, err := protocol.DecodeArrangedConnectOffer(r, h)
	if err != nil {
		c.logger.Debug().Err(err).Msg("dropping malformed arranged connect accept")
		return
	}
	c.logger.Info().Int("candidates", len(offer.Candidates)).
		Msg("received accept arranged connect response from the master server")

	if c.sink != nil {
		c.sink.ArrangedCandidates(offer.Candidates, true)
	}
}

func (c *Client) handleRejected(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	rej, err := protocol.DecodeArrangedConnectReject(r, h)
	if err != nil {
		return
	}
	c.logger.Info().Uint8("reason", rej.Reason).
		Msg("received reject arranged connect response from the master server")

	if c.sink == nil {
		return
	}
	switch rej.Reason {
	case protocol.RejectNoSuchHost:
		c.sink.ConnectionRejected("No such server")
	case protocol.RejectRefused:
		c.sink.ConnectionRejected("Server rejected")
	default:
		c.sink.ConnectionRejected("Connection rejected")
	}
}

// handleRelayResponse connects both endpoints to the nominated relay: we
// announce our role with a single-byte hello, then wait for RelayReady.
func (c *Client) handleRelayResponse(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	resp, err := protocol.DecodeRelayResponse(r, h)
	if err != nil {
		c.logger.Debug().Err(err).Msg("dropping malformed relay response")
		return
	}
	c.logger.Info().
		Str("relay", resp.Relay.String()).
		Bool("is_host", resp.IsHost).
		Msg("received relay response")

	c.mu.Lock()
	c.relayIsHost = resp.IsHost
	c.mu.Unlock()

	hello := codec.NewWriter()
	hello.WriteBool(resp.IsHost)
	_ = c.conn.Send(resp.Relay, hello.Bytes())
}

func (c *Client) handleRelayReady(from netaddr.Addr) {
	c.mu.Lock()
	isHost := c.relayIsHost
	c.mu.Unlock()

	c.logger.Info().Str("relay", from.String()).Msg("relay ready")
	if c.sink != nil {
		c.sink.RelayReady(from, isHost)
	}
}

func (c *Client) handleInviteResponse(from netaddr.Addr, h protocol.Header, r *codec.Reader) {
	resp, err := protocol.DecodeJoinInviteResponse(r, h)
	if err != nil {
		c.logger.Debug().Err(err).Msg("dropping malformed invite response")
		return
	}

	if !resp.Found {
		if c.sink != nil {
			c.sink.InviteResult(false, netaddr.Addr{}, false)
		}
		return
	}

	host := resp.Host
	isLocal := false
	if host.IsBroadcast() {
		// Sentinel: the host is whoever sent this datagram.
		host = netaddr.Addr{IP: from.IP, Port: host.Port}
		isLocal = true
	}

	c.logger.Info().Str("host", host.String()).Bool("local", isLocal).Msg("invite accepted")
	if c.sink != nil {
		c.sink.InviteResult(true, host, isLocal)
	}
}
