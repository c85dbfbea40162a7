// Package tendermint connects the marketplace to a Tendermint node.
//
// The node runs as a separate process:
//   - cmx runs an ABCI server listening on a socket
//   - Tendermint connects to that socket and drives CheckTx, DeliverTx and
//     Commit
//   - clients submit transactions through the Tendermint RPC endpoint
package tendermint

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/decred/slog"
	abciserver "github.com/tendermint/tendermint/abci/server"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/service"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// Config holds configuration for the ABCI server and Tendermint connection.
type Config struct {
	// TendermintHome is the directory for Tendermint data and config
	TendermintHome string

	// SocketAddress is the ABCI listen address, either "unix://cmx.sock"
	// or "tcp://127.0.0.1:26658"
	SocketAddress string
}

// ABCIServer wraps an ABCI socket server for a Tendermint connection.
type ABCIServer struct {
	server service.Service
	socket string
}

// NewABCIServer creates a new socket-based ABCI server for app. The server
// is created but not started.
func NewABCIServer(app abci.Application, config *Config) (*ABCIServer, error) {
	if app == nil {
		return nil, errors.New("ABCI application cannot be nil")
	}
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.SocketAddress == "" {
		return nil, errors.New("socket address cannot be empty")
	}

	return &ABCIServer{
		server: abciserver.NewSocketServer(config.SocketAddress, app),
		socket: config.SocketAddress,
	}, nil
}

// Start begins listening for Tendermint connections.
func (s *ABCIServer) Start() error {
	// A stale unix socket from an unclean shutdown blocks the listener.
	removeSocketFile(s.socket)
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("failed to start ABCI server: %w", err)
	}
	log.Infof("ABCI server listening on %s", s.socket)
	return nil
}

// Stop shuts down the ABCI server and removes the socket file.
func (s *ABCIServer) Stop() error {
	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			return fmt.Errorf("failed to stop ABCI server: %w", err)
		}
	}
	removeSocketFile(s.socket)
	return nil
}

// IsRunning returns true if the ABCI server is currently running.
func (s *ABCIServer) IsRunning() bool {
	return s.server.IsRunning()
}

// SocketPath returns the address the server is listening on.
func (s *ABCIServer) SocketPath() string {
	return s.socket
}

func removeSocketFile(addr string) {
	if !strings.HasPrefix(addr, "unix://") {
		return
	}
	path := strings.TrimPrefix(addr, "unix://")
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			log.Warnf("Failed to remove socket file %s: %v", path, err)
		}
	}
}
