package oracle

import (
	"context"
	"net"
	"time"

	"github.com/taskhub/taskhub/logger"
)

// keepAliveDialer dials Oracle over TCP with keep-alive probes enabled.
// Long-lived pooled connections otherwise get silently dropped by NAT
// gateways and stateful firewalls between probe-less idle periods.
type keepAliveDialer struct {
	interval time.Duration
	log      logger.Logger
}

func newKeepAliveDialer(interval time.Duration, log logger.Logger) *keepAliveDialer {
	return &keepAliveDialer{interval: interval, log: log}
}

// DialContext implements configurations.DialerContext for go-ora.
func (d *keepAliveDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{KeepAlive: d.interval}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		// Keep-alive only applies to TCP transports.
		return conn, nil
	}

	if err := tcpConn.SetKeepAlive(true); err != nil {
		d.log.Warn().Err(err).Msg("Failed to enable TCP keep-alive on Oracle connection")
	}
	if err := tcpConn.SetKeepAlivePeriod(d.interval); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set TCP keep-alive period on Oracle connection")
	}

	return tcpConn, nil
}
