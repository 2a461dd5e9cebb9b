package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"echo_nexus/internal/shared/config"
	"echo_nexus/internal/shared/logger"
)

const concurrentClients = 8

func main() {
	fmt.Println("--- Echo Server Tester ---")

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	address := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.ServerConf.Port))
	logger.Info().Str("address", address).Msg("Target echo server")

	failed := false
	for _, payload := range [][]byte{
		[]byte("ping"),
		bytes.Repeat([]byte("A"), 2000),
	} {
		if d, err := roundTrip(address, payload); err != nil {
			logger.Error().Err(err).Int("bytes", len(payload)).Msg("--- ROUND TRIP FAILED ---")
			failed = true
		} else {
			logger.Info().Int("bytes", len(payload)).Str("latency", d.String()).Msg("+++ round trip ok +++")
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var slowest time.Duration
	for i := 0; i < concurrentClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d, err := roundTrip(address, []byte(fmt.Sprintf("client-%d", id)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error().Err(err).Int("client", id).Msg("Concurrent client failed")
				failed = true
				return
			}
			if d > slowest {
				slowest = d
			}
		}(i)
	}
	wg.Wait()
	logger.Info().Int("clients", concurrentClients).Str("slowest", slowest.String()).Msg("Concurrent clients finished")

	if failed {
		os.Exit(1)
	}
	fmt.Println("--- Echo Server Tester complete. ---")
}

// roundTrip sends payload on a fresh connection and verifies the echo.
func roundTrip(address string, payload []byte) (time.Duration, error) {
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.SetDeadline(start.Add(10 * time.Second)); err != nil {
		return 0, err
	}
	if _, err := conn.Write(payload); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	got := make([]byte, len(payload))
	if _, err := io.ReadFull(conn, got); err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	if !bytes.Equal(got, payload) {
		return 0, fmt.Errorf("echo mismatch: sent %d bytes, got different content", len(payload))
	}
	return time.Since(start), nil
}
