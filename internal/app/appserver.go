package app

import (
	"context"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"echo_nexus/internal/core/cores"
	"echo_nexus/internal/core/echo"
	"echo_nexus/internal/core/gateway"
	"echo_nexus/internal/core/health"
	"echo_nexus/internal/core/logsink"
	"echo_nexus/internal/core/workerpool"
	"echo_nexus/internal/service/metrics"
	"echo_nexus/internal/service/web"
	"echo_nexus/internal/shared"
	"echo_nexus/internal/shared/logger"
	"echo_nexus/internal/shared/types"
)

// AppServer is the application's main struct. It wires core detection, the
// worker pool, the log sink and the echo gateway together.
type AppServer struct {
	cfg       *types.Config
	startedAt time.Time
	cores     int

	pool    *workerpool.Pool
	sink    *logsink.Sink
	gateway *gateway.Gateway
	traffic *shared.Traffic

	hub           *web.Hub
	metrics       *metrics.Metrics
	webServer     *web.Server
	healthChecker *health.Checker

	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	serving   atomic.Bool
	serveDone chan struct{} // closed when the accept loop has returned

	waitGroup sync.WaitGroup
	stopOnce  sync.Once
}

var _ types.StatusProvider = (*AppServer)(nil)

// New builds the server. Log entries are printed to out (stdout in
// production). Core detection happens here, once.
func New(cfg *types.Config, out io.Writer) *AppServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &AppServer{
		cfg:           cfg,
		startedAt:     time.Now(),
		traffic:       &shared.Traffic{},
		hub:           web.NewHub(),
		healthChecker: health.New(),
		ctx:           ctx,
		cancel:        cancel,
		serveDone:     make(chan struct{}),
	}

	counter := cores.New(cfg.Detector, runtime.GOOS, cfg.CPUInfoPath, cores.NewMatchers())
	s.cores = cores.Detect(counter, types.DefaultWorkerNum)
	s.pool = workerpool.New(s.cores, workerpool.WithQueueSize(cfg.QueueSize))
	logger.Info().Int("workers", s.pool.Size()).Msgf("%d workers were set", s.pool.Size())

	s.metrics = metrics.New(s)

	s.sink = logsink.New(out)
	s.sink.Observe(s.hub.BroadcastLogEntry)
	s.sink.Observe(func(logsink.Entry) { s.metrics.LogEntryWritten() })

	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.ServerConf.Port))
	s.gateway = gateway.New(addr, s.pool, echo.NewHandler(types.DefaultBufferSize), s.sink, s.traffic, gateway.Hooks{
		OnAccept: s.metrics.ConnectionAccepted,
		OnClose:  s.metrics.ConnectionClosed,
	})
	return s
}

// Start launches the background services and binds the echo endpoint without
// blocking. It returns the bound port; the accept loop result is delivered on
// the returned channel.
func (s *AppServer) Start() (int, <-chan error, error) {
	logger.Info().Msg("Starting echo server...")
	s.started.Store(true)

	go s.sink.Run(s.ctx)
	go s.hub.Run(s.ctx)

	s.waitGroup.Add(1)
	go s.statsLoop()

	webServer, err := web.StartServer(&s.waitGroup, s.cfg.Address, s.cfg.WebConf, s, s.metrics.Handler(), s.hub)
	if err != nil {
		// The status service is auxiliary; echoing keeps working without it.
		logger.Error().Err(err).Msg("Status service failed to start")
	}
	s.webServer = webServer

	if err := s.healthChecker.Start(&s.waitGroup, s.cfg.Address, s.cfg.HealthConf.Port); err != nil {
		logger.Error().Err(err).Msg("Health service failed to start")
	}

	port, err := s.gateway.InitializeListener()
	if err != nil {
		return 0, nil, err
	}
	s.healthChecker.SetServing(true)

	served := make(chan error, 1)
	s.serving.Store(true)
	go func() {
		err := s.gateway.Serve()
		s.healthChecker.SetServing(false)
		close(s.serveDone)
		served <- err
	}()
	return port, served, nil
}

// Run is the server's entry point. It blocks until the accept loop ends:
// nil after Stop, a KindBind error if binding or accepting failed.
func (s *AppServer) Run() error {
	_, served, err := s.Start()
	if err != nil {
		return err
	}
	return <-served
}

// Stop closes the listener and the background services. Connections still
// waiting for a worker are closed; those being served are abandoned to the
// process lifetime.
func (s *AppServer) Stop() {
	s.stopOnce.Do(func() {
		logger.Info().Msg("Stopping echo server...")
		s.gateway.Close()
		// No dispatch may reach the pool after it is stopped.
		if s.serving.Load() {
			<-s.serveDone
		}
		s.pool.Stop()
		s.gateway.DropPending()

		if s.webServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.webServer.Shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("Status service shutdown error")
			}
			cancel()
		}
		s.healthChecker.Stop()

		s.sink.Close()
		if s.started.Load() {
			<-s.sink.Done()
		}
		s.cancel()
		s.waitGroup.Wait()
	})
}

// Cores is the detected worker count.
func (s *AppServer) Cores() int {
	return s.cores
}

// GetStatus implements types.StatusProvider.
func (s *AppServer) GetStatus() *types.Status {
	return &types.Status{
		StartedAt: s.startedAt,
		Cores:     s.cores,
		Listener:  s.gateway.GetListenerInfo(),
		Pool:      s.pool.Stats(),
		Traffic: types.TrafficStats{
			Accepted: s.gateway.Accepted(),
			Active:   s.gateway.Active(),
			BytesIn:  s.traffic.BytesIn.Load(),
			BytesOut: s.traffic.BytesOut.Load(),
		},
	}
}

func (s *AppServer) statsLoop() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastIn, lastOut uint64
	var lastTimestamp time.Time

	for {
		select {
		case <-ticker.C:
			st := s.GetStatus()
			now := time.Now()

			// 计算速率（如果不是第一次）
			var inRate, outRate uint64
			if !lastTimestamp.IsZero() {
				elapsed := now.Sub(lastTimestamp).Seconds()
				if elapsed > 0 {
					inRate = uint64(float64(st.Traffic.BytesIn-lastIn) / elapsed)
					outRate = uint64(float64(st.Traffic.BytesOut-lastOut) / elapsed)
				}
			}
			lastIn, lastOut, lastTimestamp = st.Traffic.BytesIn, st.Traffic.BytesOut, now

			s.hub.BroadcastDashboardUpdate(&web.DashboardStats{
				Timestamp:         now,
				ActiveConnections: st.Traffic.Active,
				RunningTasks:      st.Pool.Running,
				WaitingTasks:      st.Pool.Waiting,
				InRate:            inRate,
				OutRate:           outRate,
			})

		case <-s.ctx.Done():
			return
		}
	}
}
