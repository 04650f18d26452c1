package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/scout-project/scout/internal/codec"
	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/util"
)

// UDPConn is the production transport: a single UDP socket with broadcast
// enabled and a read loop pushing datagrams to the handler.
type UDPConn struct {
	conn    *net.UDPConn
	handler Handler
	logger  zerolog.Logger
}

// ListenUDP binds the discovery socket on the given port (0 for ephemeral)
// and starts the read loop. The socket is closed when ctx is cancelled.
func ListenUDP(ctx context.Context, port uint16, handler Handler) (*UDPConn, error) {
	lc := ReuseAddrListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind discovery socket on port %d: %w", port, err)
	}

	u := &UDPConn{
		conn:    pc.(*net.UDPConn),
		handler: handler,
		logger:  util.ComponentLogger("transport"),
	}

	u.logger.Info().Int("port", int(port)).Msg("discovery socket bound")

	go func() {
		<-ctx.Done()
		u.conn.Close()
	}()
	go u.readLoop(ctx)

	return u, nil
}

func (u *UDPConn) readLoop(ctx context.Context) {
	buf := make([]byte, codec.MaxPacketSize)
	for {
		n, remote, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				u.logger.Info().Msg("discovery socket read loop stopping")
				return
			default:
				u.logger.Error().Err(err).Msg("UDP read error")
				continue
			}
		}
		if n < 1 {
			continue
		}

		from, ok := netaddr.FromUDPAddr(remote)
		if !ok {
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		u.handler(from, payload)
	}
}

// Send transmits one datagram. Failures are logged and returned; the
// caller treats them like a missed response.
func (u *UDPConn) Send(to netaddr.Addr, payload []byte) error {
	if _, err := u.conn.WriteToUDP(payload, to.UDPAddr()); err != nil {
		u.logger.Warn().Err(err).Str("remote", to.String()).Msg("failed to send datagram")
		return err
	}
	return nil
}

// Close shuts the socket down.
func (u *UDPConn) Close() error {
	return u.conn.Close()
}

// LocalPort returns the bound port.
func (u *UDPConn) LocalPort() uint16 {
	if ua, ok := u.conn.LocalAddr().(*net.UDPAddr); ok {
		return uint16(ua.Port)
	}
	return 0
}
