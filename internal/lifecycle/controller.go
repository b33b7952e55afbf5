// Package lifecycle starts, stops and inspects the mobile access daemon.
//
// Every operation is a short, bounded conversation: probe the configured
// address, decide, act, then probe again so the reported status reflects
// what is actually listening.
package lifecycle

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codexmonitor/daemonctl/internal/daemon"
	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
	"github.com/codexmonitor/daemonctl/internal/process"
)

// InterruptedMessage is reported when an operation's context ends before
// the daemon state could be observed.
const InterruptedMessage = "Interrupted before the daemon state could be confirmed."

const (
	defaultPollInterval     = 100 * time.Millisecond
	defaultShutdownAttempts = 20
	defaultReadyAttempts    = 30
)

// Prober talks to whatever listens on the daemon address.
type Prober interface {
	Probe(ctx context.Context, listenAddr, token string) daemon.Outcome
	RequestShutdown(ctx context.Context, listenAddr, token string) error
}

// PIDResolver maps a listen address to the pid of its listener.
type PIDResolver interface {
	ResolveOwningPID(ctx context.Context, listenAddr string, expectedPID uint32) (uint32, bool)
}

// Terminator stops a process by pid.
type Terminator interface {
	TerminateGracefully(ctx context.Context, pid uint32) error
}

// Spawner launches the daemon binary.
type Spawner interface {
	Spawn(binary string, args []string) (*process.Spawned, error)
}

// Target is the daemon a Controller manages.
type Target struct {
	ListenAddr     string
	Token          string
	InsecureNoAuth bool
	DataDir        string
	// DaemonPath is only needed by Start.
	DaemonPath string
}

// Controller runs lifecycle operations against one Target.
type Controller struct {
	target Target

	prober  Prober
	pids    PIDResolver
	term    Terminator
	spawner Spawner
	log     logrus.FieldLogger

	pollInterval     time.Duration
	shutdownAttempts int
	readyAttempts    int
	now              func() time.Time
	bindTest         func(addr string) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Lifecycle steps are logged at info and
// debug level; the token is never logged.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = log }
}

// WithProber replaces the daemon client.
func WithProber(p Prober) Option {
	return func(c *Controller) { c.prober = p }
}

// WithPIDResolver replaces listener pid discovery.
func WithPIDResolver(r PIDResolver) Option {
	return func(c *Controller) { c.pids = r }
}

// WithTerminator replaces process termination.
func WithTerminator(t Terminator) Option {
	return func(c *Controller) { c.term = t }
}

// WithSpawner replaces daemon process creation.
func WithSpawner(s Spawner) Option {
	return func(c *Controller) { c.spawner = s }
}

// WithPollInterval sets the delay between probes while waiting for the
// daemon to stop or to come up.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithReadyAttempts bounds how many probes Start makes after spawning.
func WithReadyAttempts(n int) Option {
	return func(c *Controller) { c.readyAttempts = n }
}

// WithClock sets the clock used for startedAtMs.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. Collaborators not supplied through options
// are the real daemon client and process helpers.
func New(target Target, opts ...Option) *Controller {
	c := &Controller{
		target:           target,
		pollInterval:     defaultPollInterval,
		shutdownAttempts: defaultShutdownAttempts,
		readyAttempts:    defaultReadyAttempts,
		now:              time.Now,
		bindTest:         bindTest,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	c.log = c.log.WithFields(logrus.Fields{"component": "lifecycle", "listen": target.ListenAddr})

	if c.prober == nil {
		c.prober = daemon.NewClient(daemon.WithLogger(c.log))
	}
	if c.pids == nil {
		c.pids = process.NewDiscoverer(c.log)
	}
	if c.term == nil {
		c.term = process.NewTerminator(process.DefaultTerminatePolicy(), c.log)
	}
	if c.spawner == nil {
		c.spawner = process.NewSpawner(c.log)
	}
	return c
}

func interrupted(err error) error {
	return apperrors.Wrap(apperrors.KindInterrupted, InterruptedMessage, err)
}

// probe classifies the endpoint. A probe made with an ended context cannot
// tell a stopped daemon from a cancelled dial, so it is an error rather
// than an outcome.
func (c *Controller) probe(ctx context.Context) (daemon.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, interrupted(err)
	}
	outcome := c.prober.Probe(ctx, c.target.ListenAddr, c.target.Token)
	if err := ctx.Err(); err != nil {
		return nil, interrupted(err)
	}
	return outcome, nil
}

func (c *Controller) resolvePID(ctx context.Context, expected uint32) (uint32, bool) {
	return c.pids.ResolveOwningPID(ctx, c.target.ListenAddr, expected)
}

// sleep waits one poll interval. It returns false if ctx ended first.
func (c *Controller) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// waitUnreachable probes until nothing answers on the address, at most
// shutdownAttempts times.
func (c *Controller) waitUnreachable(ctx context.Context) (bool, error) {
	for attempt := 0; attempt < c.shutdownAttempts; attempt++ {
		outcome, err := c.probe(ctx)
		if err != nil {
			return false, err
		}
		if _, ok := outcome.(daemon.Unreachable); ok {
			return true, nil
		}
		if !c.sleep(ctx) {
			return false, interrupted(ctx.Err())
		}
	}
	return false, nil
}

func bindTest(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
