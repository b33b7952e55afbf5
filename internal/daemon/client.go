package daemon

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
	"github.com/codexmonitor/daemonctl/internal/protocol"
)

// Request ids used on a probe connection. Each connection is fresh, so ids
// only need to be unique within one conversation.
const (
	idPing          = 1
	idInfo          = 2
	idAuth          = 10
	idPingAfterAuth = 11
	idInfoAfterAuth = 12

	idShutdownPing = 1
	idShutdownAuth = 2
	idShutdown     = 3
)

// MissingTokenMessage is reported when the daemon demands a token and none
// was configured.
const MissingTokenMessage = "Daemon is running but requires a remote backend token."

// Client probes and controls a daemon over its TCP control channel.
// A Client holds no connection between calls; every operation dials anew.
type Client struct {
	timeout time.Duration
	log     logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the connect and per round trip timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new daemon client.
func NewClient(opts ...ClientOption) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		timeout: protocol.DefaultTimeout,
		log:     discard,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ConnectAddress maps a listen address to the address to probe. Daemons
// bound to all interfaces are only probed over loopback; other hosts are
// used as-is. It returns false when listenAddr is not a socket address.
func ConnectAddress(listenAddr string) (string, bool) {
	addr, err := netip.ParseAddrPort(strings.TrimSpace(listenAddr))
	if err != nil {
		return "", false
	}
	ip := addr.Addr()
	if ip.IsUnspecified() {
		if ip.Is4() {
			ip = netip.AddrFrom4([4]byte{127, 0, 0, 1})
		} else {
			ip = netip.IPv6Loopback()
		}
	}
	return netip.AddrPortFrom(ip, addr.Port()).String(), true
}

// Probe classifies the endpoint behind listenAddr.
//
// A successful ping means the daemon is ours to talk to. A ping rejected for
// authentication triggers one auth attempt with token followed by a second
// ping. Anything else that answers is Foreign. Connect failures and
// timeouts are Unreachable. Probe never returns an error: every failure is
// a classification.
func (c *Client) Probe(ctx context.Context, listenAddr, token string) Outcome {
	connectAddr, ok := ConnectAddress(listenAddr)
	if !ok {
		return Unreachable{}
	}
	log := c.log.WithField("addr", connectAddr)

	conn, err := protocol.Dial(ctx, connectAddr, c.timeout)
	if err != nil {
		log.WithError(err).Debug("daemon not reachable")
		return Unreachable{}
	}
	defer conn.Close()

	_, err = conn.Call(idPing, protocol.MethodPing, nil)
	if err == nil {
		return Running{AuthOK: true, Identity: c.identity(conn, idInfo, log)}
	}
	if !protocol.IsAuthRejection(err) {
		log.WithError(err).Debug("endpoint does not speak the daemon protocol")
		return Foreign{Reason: err.Error()}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return Running{AuthError: MissingTokenMessage}
	}

	if _, err := conn.Call(idAuth, protocol.MethodAuth, protocol.AuthParams{Token: token}); err != nil {
		if protocol.IsAuthRejection(err) {
			return Running{AuthError: fmt.Sprintf("Daemon is running but token authentication failed: %v", err)}
		}
		log.WithError(err).Debug("auth rejected for a non-auth reason")
		return Foreign{Reason: err.Error()}
	}

	if _, err := conn.Call(idPingAfterAuth, protocol.MethodPing, nil); err != nil {
		return Running{AuthError: fmt.Sprintf("Daemon is running but ping failed after auth: %v", err)}
	}
	return Running{AuthOK: true, Identity: c.identity(conn, idInfoAfterAuth, log)}
}

// identity fetches daemon_info; failures leave the identity unknown.
func (c *Client) identity(conn *protocol.Conn, id uint64, log logrus.FieldLogger) *Identity {
	result, err := conn.Call(id, protocol.MethodDaemonInfo, nil)
	if err != nil {
		log.WithError(err).Debug("daemon_info failed")
		return nil
	}
	ident, err := ParseIdentity(result)
	if err != nil {
		log.WithError(err).Debug("daemon_info unusable")
		return nil
	}
	return ident
}

// RequestShutdown asks the daemon to exit through daemon_shutdown,
// authenticating first when the daemon demands it.
func (c *Client) RequestShutdown(ctx context.Context, listenAddr, token string) error {
	connectAddr, ok := ConnectAddress(listenAddr)
	if !ok {
		return apperrors.Config("invalid daemon listen address")
	}

	conn, err := protocol.Dial(ctx, connectAddr, c.timeout)
	if err != nil {
		if protocol.IsTimeout(err) {
			return apperrors.Wrap(apperrors.KindTransport, fmt.Sprintf("Timed out connecting to daemon at %s", connectAddr), err)
		}
		return apperrors.Wrap(apperrors.KindTransport, fmt.Sprintf("Failed to connect to daemon at %s: %v", connectAddr, unwrapOp(err)), err)
	}
	defer conn.Close()

	if _, err := conn.Call(idShutdownPing, protocol.MethodPing, nil); err != nil {
		if !protocol.IsAuthRejection(err) {
			return apperrors.Wrap(apperrors.KindOf(err), fmt.Sprintf("Daemon ping failed: %v", err), err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return apperrors.Wrap(apperrors.KindRemote, MissingTokenMessage, err)
		}
		if _, err := conn.Call(idShutdownAuth, protocol.MethodAuth, protocol.AuthParams{Token: token}); err != nil {
			return apperrors.Wrap(apperrors.KindOf(err), fmt.Sprintf("Daemon authentication failed: %v", err), err)
		}
	}

	if _, err := conn.Call(idShutdown, protocol.MethodDaemonShutdown, nil); err != nil {
		return apperrors.Wrap(apperrors.KindOf(err), fmt.Sprintf("Daemon shutdown request failed: %v", err), err)
	}
	c.log.WithField("addr", connectAddr).Debug("daemon acknowledged shutdown")
	return nil
}

func unwrapOp(err error) error {
	if transport, ok := err.(*protocol.TransportError); ok {
		return transport.Err
	}
	return err
}
