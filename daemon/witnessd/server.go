// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

// Package witnessd runs a witness node behind its REST API.
package witnessd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	apiServer "github.com/witnessnet/go-witness/daemon/witnessd/api/server"
	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/lib"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/logging/logspec"
	"github.com/witnessnet/go-witness/node"
)

// maxHeaderBytes bounds request headers; the API takes no credentials.
const maxHeaderBytes = 4096

// apiShutdownTimeout is how long in-flight requests get on shutdown.
const apiShutdownTimeout = 5 * time.Second

// ErrConsensusHalted is returned by WatchConsensus once the node stopped
// agreeing on blocks.
var ErrConsensusHalted = errors.New("consensus halted")

// ServerNode is the required methods for any node the server fronts
type ServerNode interface {
	lib.NodeInterface
	ListeningAddress() (string, bool)
	ConsensusDone() <-chan struct{}
	Start() error
	Stop()
}

// Server represents an instance of the REST API HTTP server
type Server struct {
	RootPath            string
	Genesis             bookkeeping.Genesis
	GenesisHashOverride crypto.Digest
	// Secrets is the witness key; nil runs an observer.
	Secrets *crypto.SignatureSecrets
	// SessionID tags every log line of this run.
	SessionID string

	pidFile       string
	netFile       string
	netListenFile string
	log           logging.Logger
	node          ServerNode
	stopping      chan struct{}
	stopOnce      sync.Once
}

// Initialize sets up logging and creates the node.
func (s *Server) Initialize(cfg config.Local) error {
	base := logging.Base()

	var logWriter io.Writer
	if cfg.LogToStdout || cfg.LogSizeLimit == 0 {
		fmt.Println("Logging to: stdout")
		logWriter = os.Stdout
	} else {
		liveLog, archive := cfg.ResolveLogPaths(s.RootPath)
		fmt.Println("Logging to: ", liveLog)
		cyclic, err := logging.MakeCyclicFileWriter(liveLog, archive, cfg.LogSizeLimit)
		if err != nil {
			return fmt.Errorf("Initialize() cannot open log: %w", err)
		}
		logWriter = cyclic
	}
	base.SetOutput(logWriter)
	base.SetJSONFormatter()
	base.SetLevel(logging.Level(cfg.BaseLoggerDebugLevel))

	s.log = base
	if s.SessionID != "" {
		s.log = base.With("Session", s.SessionID)
	}
	setupDeadlockLogger(s.log, time.Duration(cfg.DeadlockDetectionThreshold)*time.Second)

	s.log.Info("++++++++++++++++++++++++++++++++++++++++")
	s.log.Infof("Logging Starting, session %s", s.SessionID)
	s.log.Info("++++++++++++++++++++++++++++++++++++++++")

	witnessNode, err := node.MakeWitness(s.log, s.RootPath, cfg, s.Genesis, s.GenesisHashOverride, s.Secrets)
	if err != nil {
		return fmt.Errorf("couldn't initialize the node: %w", err)
	}
	s.node = witnessNode
	s.stopping = make(chan struct{})

	// When a caller to logging uses Fatal, we want to stop the node before os.Exit is called.
	logging.RegisterExitHandler(s.Stop)
	return nil
}

// helper handles startup of tcp listener
func makeListener(addr string) (net.Listener, error) {
	var listener net.Listener
	var err error
	if (addr == "127.0.0.1:0") || (addr == ":0") {
		// if port 0 is provided, prefer port 8080 first, then fall back to port 0
		preferredAddr := strings.Replace(addr, ":0", ":8080", -1)
		listener, err = net.Listen("tcp", preferredAddr)
		if err == nil {
			return listener, err
		}
	}
	// err was not nil or :0 was not provided, fall back to originally passed addr
	return net.Listen("tcp", addr)
}

// helper to get port from an address
func getPortFromAddress(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err == nil && u.Scheme != "" {
		addr = u.Host
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("Error parsing address: %v", err)
	}
	return port, nil
}

// Start starts the node and records its pid in the data directory.
func (s *Server) Start() error {
	s.log.Info("Trying to start a witness node")
	err := s.node.Start()
	if err != nil {
		s.log.Errorf("Failed to start a witness node: %v", err)
		return err
	}
	s.log.EventWithDetails(logspec.FrontendEvent(logspec.StartupEvent, s.SessionID), "witness node started", logging.Fields{
		"GenesisHash": s.node.GenesisHash().String(),
		"Witness":     s.Secrets != nil,
	})

	s.pidFile = filepath.Join(s.RootPath, "witnessd.pid")
	err = os.WriteFile(s.pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
	if err != nil {
		return fmt.Errorf("pidfile error: %w", err)
	}

	if listenAddr, listening := s.node.ListeningAddress(); listening {
		s.netListenFile = filepath.Join(s.RootPath, "witnessd-listen.net")
		err = os.WriteFile(s.netListenFile, []byte(fmt.Sprintf("%s\n", listenAddr)), 0644)
		if err != nil {
			return fmt.Errorf("netlistenfile error: %w", err)
		}
	}
	return nil
}

// ServeAPI serves the REST API until ctx is done. With no EndpointAddress
// configured it only waits for ctx.
func (s *Server) ServeAPI(ctx context.Context) error {
	cfg := s.node.Config()
	if cfg.EndpointAddress == "" {
		s.log.Info("API disabled: no EndpointAddress configured")
		<-ctx.Done()
		return nil
	}

	listener, err := makeListener(cfg.EndpointAddress)
	if err != nil {
		return fmt.Errorf("could not start API: %w", err)
	}
	addr := listener.Addr().String()

	if listenAddr, listening := s.node.ListeningAddress(); listening {
		addrPort, err1 := getPortFromAddress(addr)
		listenPort, err2 := getPortFromAddress(listenAddr)
		if err1 == nil && err2 == nil && addrPort == listenPort {
			s.log.Warnf("EndpointAddress port %v matches NetAddress port %v. This may lead to unexpected results when accessing endpoints.", addrPort, listenPort)
		}
	}

	s.netFile = filepath.Join(s.RootPath, "witnessd.net")
	err = os.WriteFile(s.netFile, []byte(fmt.Sprintf("%s\n", addr)), 0644)
	if err != nil {
		listener.Close()
		return fmt.Errorf("netfile error: %w", err)
	}

	server := &http.Server{
		Handler:        apiServer.NewRouter(s.log, s.node, s.stopping),
		ReadTimeout:    time.Duration(cfg.RestReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.RestWriteTimeoutSeconds) * time.Second,
		MaxHeaderBytes: maxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(listener)
	}()
	s.log.Infof("Node accepting RPC requests over HTTP on %v", addr)

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// WatchConsensus blocks until ctx is done or the node's agreement service
// stops. A halt is reported as ErrConsensusHalted.
func (s *Server) WatchConsensus(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-s.node.ConsensusDone():
		if err := s.node.ConsensusErr(); err != nil {
			return fmt.Errorf("%w: %v", ErrConsensusHalted, err)
		}
		return nil
	}
}

// Stop initiates a graceful shutdown of the node. It is safe to call more
// than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		// signal the rest api router that any pending commands should be aborted.
		close(s.stopping)

		s.log.EventWithDetails(logspec.FrontendEvent(logspec.ShutdownEvent, s.SessionID), "witness node stopping", nil)
		s.node.Stop()

		for _, f := range []string{s.pidFile, s.netFile, s.netListenFile} {
			if f != "" {
				os.Remove(f)
			}
		}
	})
}
