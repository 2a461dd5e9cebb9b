package health

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"echo_nexus/internal/shared/logger"
)

// ServiceName is the gRPC health service name of the echo gateway.
const ServiceName = "echo_nexus.Echo"

// Checker 通过 gRPC health 协议对外报告 echo 网关的存活状态。
type Checker struct {
	server *grpc.Server
	status *grpchealth.Server
}

// New creates a checker that reports NOT_SERVING until SetServing(true).
func New() *Checker {
	c := &Checker{
		server: grpc.NewServer(),
		status: grpchealth.NewServer(),
	}
	healthpb.RegisterHealthServer(c.server, c.status)
	c.SetServing(false)
	return c
}

// SetServing flips both the overall and the echo service status.
func (c *Checker) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	c.status.SetServingStatus("", st)
	c.status.SetServingStatus(ServiceName, st)
}

// Start binds host:port and serves in the background. A port <= 0 disables
// the checker and returns nil.
func (c *Checker) Start(wg *sync.WaitGroup, host string, port int) error {
	if port <= 0 {
		logger.Info().Msg("[Health] gRPC health service is disabled.")
		return nil
	}
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start health service on %s: %w", addr, err)
	}
	c.Serve(wg, listener)
	return nil
}

// Serve serves an already bound listener in the background.
func (c *Checker) Serve(wg *sync.WaitGroup, listener net.Listener) {
	logger.Info().Str("listen_addr", listener.Addr().String()).Msg("gRPC health service is listening.")
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.server.Serve(listener); err != nil {
			logger.Warn().Err(err).Msg("gRPC health service stopped with error")
		}
	}()
}

// Stop marks everything NOT_SERVING and stops the gRPC server.
func (c *Checker) Stop() {
	c.status.Shutdown()
	c.server.GracefulStop()
}
