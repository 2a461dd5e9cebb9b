package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"echo_nexus/internal/shared/logger"
	"echo_nexus/internal/shared/types"
)

// --- DIAGNOSTIC HELPER: A listener that logs accepted connections ---
type loggingListener struct {
	net.Listener
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		logger.Debug().Msgf(" [WebServer DIAGNOSTIC] Connection accepted from: %s ", conn.RemoteAddr())
	}
	return conn, err
}

// basicAuthMiddleware 检查 user 和 pass 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux builds the routes of the status service.
func NewMux(cfg types.WebConf, provider types.StatusProvider, metrics http.Handler, hub *Hub) *http.ServeMux {
	handler := NewHandler(provider)
	mux := http.NewServeMux()

	mux.Handle("/api/status", basicAuthMiddleware(http.HandlerFunc(handler.HandleStatus), cfg.User, cfg.Password))
	if metrics != nil {
		mux.Handle("/metrics", basicAuthMiddleware(metrics, cfg.User, cfg.Password))
	}

	// --- WebSocket Endpoint (公开，无需认证) ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	return mux
}

// Server is a running status service.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// StartServer binds the status service and serves it in the background.
// It returns (nil, nil) when the service is disabled (port <= 0).
func StartServer(wg *sync.WaitGroup, host string, cfg types.WebConf, provider types.StatusProvider, metrics http.Handler, hub *Hub) (*Server, error) {
	if cfg.Port <= 0 {
		logger.Info().Msg("[WebServer] Status service is disabled (web port is 0 or not set).")
		return nil, nil
	}

	addr := net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start status service on %s: %w", addr, err)
	}
	logger.Info().Msgf("SUCCESS: Status service is listening on http://%s", listener.Addr())

	s := &Server{
		srv:      &http.Server{Handler: NewMux(cfg, provider, metrics, hub)},
		listener: listener,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.srv.Serve(loggingListener{Listener: listener}); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Status service error")
		}
		logger.Info().Msg("Status service stopped.")
	}()
	return s, nil
}
