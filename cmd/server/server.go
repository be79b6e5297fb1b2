package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	nanodb "github.com/jibon-roy/nano-db"
	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/db"
)

var errRateLimited = errors.New("rate limit exceeded: slow down")

// Server is a TCP command server that exposes the nanodb engine. Every
// connection owns its own session, so "use" on one connection does not affect
// another.
type Server struct {
	listener   net.Listener
	engine     *db.Engine
	auth       *AuthConfig
	limit      rate.Limit
	burst      int
	tlsEnabled bool

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server that runs every command as identity. Export and
// import accept only http(s) and s3 URLs, never paths on the server host.
func NewServer(instance *nanodb.Instance, identity core.Identity) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		engine: instance.Engine(identity).WithoutLocalFiles(),
		limit:  rate.Inf,
		ctx:    ctx,
		cancel: cancel,
		conns:  map[net.Conn]struct{}{},
	}
}

// NewServerWithAuth creates a server whose connections must authenticate
// before running commands. Writes are recorded as the authenticated user.
func NewServerWithAuth(instance *nanodb.Instance, identity core.Identity, auth *AuthConfig) *Server {
	s := NewServer(instance, identity)
	s.auth = auth
	return s
}

// WithRateLimit allows perSecond commands per connection with bursts of
// burst. Zero disables limiting.
func (s *Server) WithRateLimit(perSecond float64, burst int) *Server {
	if perSecond <= 0 {
		s.limit = rate.Inf
		return s
	}
	s.limit = rate.Limit(perSecond)
	s.burst = burst
	return s
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	slog.Info("Server listening", "addr", listener.Addr().String())

	go s.acceptLoop()
	return nil
}

// StartTLS begins listening for TLS connections using the given PEM files.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	slog.Info("Server listening", "addr", listener.Addr().String(), "tls", true)

	go s.acceptLoop()
	return nil
}

// TLSEnabled reports whether the server was started with StartTLS.
func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to return.
func (s *Server) Stop() error {
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("Accept failed", "err", err)
			continue
		}

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	logger := slog.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	logger.Info("Client connected")

	state := &ConnectionState{session: s.engine.NewSession()}
	limiter := rate.NewLimiter(s.limit, s.burst)
	reader := bufio.NewReader(conn)

	for {
		// One command per line
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && s.ctx.Err() == nil {
				logger.Warn("Read failed", "err", err)
			}
			logger.Info("Client disconnected")
			return
		}

		command := strings.TrimSpace(line)
		if strings.HasPrefix(command, "{") {
			req, err := DecodeRequest([]byte(command))
			if err != nil {
				if !s.send(logger, conn, errorResponse(fmt.Errorf("invalid request: %w", err))) {
					return
				}
				continue
			}
			command = strings.TrimSpace(req.Query)
		}
		if command == "" {
			continue
		}

		if lower := strings.ToLower(command); lower == "quit" || lower == "exit" {
			logger.Info("Client disconnected")
			return
		}

		response := s.handleCommand(logger, state, limiter, command)
		if !s.send(logger, conn, response) {
			return
		}
	}
}

func (s *Server) handleCommand(logger *slog.Logger, state *ConnectionState, limiter *rate.Limiter, command string) Response {
	if !limiter.Allow() {
		logger.Warn("Rate limited")
		return errorResponse(errRateLimited)
	}

	if isAuthCommand(command) {
		resp := s.handleAuth(command, state)
		if resp.Success {
			logger.Info("Authenticated", "identity", state.session.Identity.Name)
		} else {
			logger.Warn("Authentication failed", "err", resp.Error)
		}
		return resp
	}

	if s.auth.Required() {
		if !state.IsAuthenticated() {
			return errorResponse(errAuthRequired)
		}
		if state.expired(time.Now()) {
			state.authenticated = false
			return errorResponse(errTokenExpired)
		}
	}

	result, err := s.engine.Execute(s.ctx, state.session, command)
	if err != nil {
		logger.Debug("Command failed", "command", command, "err", err)
		return errorResponse(err)
	}
	return newResponse(result)
}

func (s *Server) send(logger *slog.Logger, conn net.Conn, response Response) bool {
	data, err := EncodeResponse(response)
	if err != nil {
		logger.Error("Failed to encode response", "err", err)
		return true
	}

	if _, err := conn.Write(data); err != nil {
		logger.Warn("Write failed", "err", err)
		return false
	}
	return true
}
