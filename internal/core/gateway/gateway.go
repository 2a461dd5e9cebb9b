package gateway

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"echo_nexus/internal/core/echo"
	"echo_nexus/internal/core/logsink"
	"echo_nexus/internal/shared"
	echoerrors "echo_nexus/internal/shared/errors"
	"echo_nexus/internal/shared/logger"
	"echo_nexus/internal/shared/types"
)

// Executor runs connection tasks with bounded concurrency. Execute returns an
// error when the task was refused and will never run.
type Executor interface {
	Execute(task func()) error
}

// Hooks lets the owner observe the connection lifecycle. Any field may be nil.
type Hooks struct {
	OnAccept func()
	OnClose  func(err error)
}

// Gateway is the echo listener: it accepts connections and dispatches each
// one to the worker pool.
type Gateway struct {
	addr         string
	listener     net.Listener
	listenerInfo *types.ListenerInfo
	pool         Executor
	handler      *echo.Handler
	sink         *logsink.Sink
	traffic      *shared.Traffic
	hooks        Hooks

	accepted atomic.Int64
	active   atomic.Int64

	mu        sync.Mutex
	pending   map[net.Conn]struct{} // accepted, not yet picked up by a worker
	closing   atomic.Bool
	closeOnce sync.Once
	log       zerolog.Logger
}

func New(addr string, pool Executor, handler *echo.Handler, sink *logsink.Sink, traffic *shared.Traffic, hooks Hooks) *Gateway {
	if traffic == nil {
		traffic = &shared.Traffic{}
	}
	return &Gateway{
		addr:    addr,
		pool:    pool,
		handler: handler,
		sink:    sink,
		traffic: traffic,
		hooks:   hooks,
		pending: make(map[net.Conn]struct{}),
		log:     logger.WithComponent("gateway"),
	}
}

// InitializeListener binds the echo endpoint without blocking and returns the
// actual port.
func (g *Gateway) InitializeListener() (int, error) {
	listener, err := net.Listen("tcp", g.addr)
	if err != nil {
		return 0, echoerrors.NewError(echoerrors.KindBind, "gateway failed to listen").AtPrefix(g.addr).Base(err)
	}
	info := g.setListener(listener)
	return info.Port, nil
}

func (g *Gateway) setListener(listener net.Listener) *types.ListenerInfo {
	info := &types.ListenerInfo{Address: listener.Addr().String()}
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		info.Address = tcpAddr.IP.String()
		info.Port = tcpAddr.Port
	}

	g.mu.Lock()
	g.listener = listener
	g.listenerInfo = info
	g.mu.Unlock()

	// Close() may have raced ahead of us.
	if g.closing.Load() {
		listener.Close()
	}
	logger.Info().Str("listen_addr", listener.Addr().String()).Msg(">>> Echo gateway is listening.")
	return info
}

func (g *Gateway) currentListener() net.Listener {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listener
}

// Serve runs the blocking accept loop. It must be called after
// InitializeListener. It returns nil once Close was called and a KindBind
// error if accepting fails for any other reason.
func (g *Gateway) Serve() error {
	listener := g.currentListener()
	if listener == nil {
		return echoerrors.NewError(echoerrors.KindBind, "Serve() called before InitializeListener()")
	}
	return g.acceptLoop(listener)
}

// ServeListener adopts an already bound listener and serves it.
func (g *Gateway) ServeListener(listener net.Listener) error {
	g.setListener(listener)
	return g.acceptLoop(listener)
}

// GetListenerInfo returns the bound address, or nil before binding.
func (g *Gateway) GetListenerInfo() *types.ListenerInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listenerInfo
}

// Accepted is the number of connections accepted so far.
func (g *Gateway) Accepted() int64 {
	return g.accepted.Load()
}

// Active is the number of connections accepted and not yet closed, queued
// ones included.
func (g *Gateway) Active() int64 {
	return g.active.Load()
}

func (g *Gateway) acceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if g.closing.Load() || errors.Is(err, net.ErrClosed) {
				logger.Info().Msg("Gateway listener is closing.")
				return nil
			}
			return echoerrors.NewError(echoerrors.KindBind, "accept loop failed").AtPrefix(g.addr).Base(err)
		}
		g.dispatch(conn)
	}
}

// dispatch hands conn to the pool together with its own log sender.
func (g *Gateway) dispatch(conn net.Conn) {
	g.accepted.Add(1)
	g.active.Add(1)
	if g.hooks.OnAccept != nil {
		g.hooks.OnAccept()
	}

	tx := g.sink.Sender()
	l := g.log.With().
		Str("trace_id", uuid.NewString()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()
	l.Debug().Msg("Connection accepted, queued for a worker")

	g.mu.Lock()
	g.pending[conn] = struct{}{}
	g.mu.Unlock()

	err := g.pool.Execute(func() {
		if !g.claim(conn) {
			return
		}
		g.handleConnection(conn, tx, l)
	})
	if err != nil && g.claim(conn) {
		l.Warn().Err(err).Msg("Connection refused by the worker pool")
		g.release(conn, echoerrors.NewError(echoerrors.KindIO, "connection was not served").Base(err))
	}
}

// claim removes conn from the pending set. Only the caller that gets true may
// serve or close it.
func (g *Gateway) claim(conn net.Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[conn]; !ok {
		return false
	}
	delete(g.pending, conn)
	return true
}

func (g *Gateway) release(conn net.Conn, err error) {
	conn.Close()
	g.active.Add(-1)
	if g.hooks.OnClose != nil {
		g.hooks.OnClose(err)
	}
}

func (g *Gateway) handleConnection(conn net.Conn, tx logsink.Sender, l zerolog.Logger) {
	var err error
	defer func() { g.release(conn, err) }()

	counted := shared.NewCountedConn(conn, &g.traffic.BytesIn, &g.traffic.BytesOut)
	err = g.handler.Handle(counted, tx)
	if err != nil {
		l.Error().Err(err).Str("kind", echoerrors.KindOf(err).String()).Msg("an error occurred")
		return
	}
	l.Info().Msg("close connection")
}

// DropPending closes every connection still waiting for a worker and returns
// how many there were. Used once the pool has been stopped, when queued tasks
// will never run.
func (g *Gateway) DropPending() int {
	g.mu.Lock()
	conns := make([]net.Conn, 0, len(g.pending))
	for conn := range g.pending {
		conns = append(conns, conn)
	}
	clear(g.pending)
	g.mu.Unlock()

	for _, conn := range conns {
		g.release(conn, echoerrors.NewError(echoerrors.KindIO, "connection dropped before a worker was free"))
	}
	if len(conns) > 0 {
		g.log.Warn().Int("count", len(conns)).Msg("Dropped queued connections")
	}
	return len(conns)
}

// Close stops the accept loop. Connections already handed to the pool keep
// running until their peers go away.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.closing.Store(true)
		if listener := g.currentListener(); listener != nil {
			listener.Close()
		}
		g.log.Info().Msg("Gateway has been shut down")
	})
}
