// Package livereload implements the server side of the LiveReload
// protocol: browsers connect over a websocket, and every completed build
// is broadcast to them as a reload command.
package livereload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/websocket"
)

// ProtocolOfficial7 is the protocol version this server speaks.
const ProtocolOfficial7 = "http://livereload.com/protocols/official-7"

const writeTimeout = 2 * time.Second

// Message is a LiveReload protocol frame.
type Message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

// Server is a LiveReload server. The zero value is not usable; use
// NewServer.
type Server struct {
	addr string

	mu       sync.Mutex
	started  bool
	listener net.Listener
	http     *http.Server
	clients  map[*websocket.Conn]struct{}

	notifications atomic.Int64
}

// NewServer creates a server that will listen on addr once started.
func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start begins listening. Only the first call has an effect; the server
// stops when ctx is done or Close is called. Binding is retried with
// backoff because a previous process may still hold the port briefly.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	var ln net.Listener
	listen := func() error {
		var err error
		ln, err = net.Listen("tcp", s.addr)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(listen, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("starting livereload server on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/livereload", websocket.Handler(s.handle))
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.listener = ln
	s.started = true

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("livereload server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	slog.Info("livereload listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Notify tells every connected client that path changed.
func (s *Server) Notify(path string) {
	s.notifications.Add(1)

	s.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	msg := Message{Command: "reload", Path: path, LiveCSS: true}
	for _, c := range clients {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := websocket.JSON.Send(c, msg); err != nil {
			slog.Debug("dropping livereload client", "error", err)
			s.remove(c)
			c.Close()
		}
	}
	slog.Debug("livereload notified", "path", path, "clients", len(clients))
}

// Notifications returns how many times Notify was called.
func (s *Server) Notifications() int64 {
	return s.notifications.Load()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops the server and disconnects all clients.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return nil
	}
	for c := range s.clients {
		c.Close()
	}
	clear(s.clients)
	err := s.http.Close()
	s.http = nil
	return err
}

func (s *Server) handle(ws *websocket.Conn) {
	defer ws.Close()

	var hello Message
	if err := websocket.JSON.Receive(ws, &hello); err != nil || hello.Command != "hello" {
		slog.Debug("rejecting livereload client", "command", hello.Command, "error", err)
		return
	}

	reply := Message{Command: "hello", Protocols: []string{ProtocolOfficial7}, ServerName: "assetpipe"}
	if err := websocket.JSON.Send(ws, reply); err != nil {
		return
	}

	// Registered only after the handshake so no reload precedes hello.
	s.mu.Lock()
	s.clients[ws] = struct{}{}
	s.mu.Unlock()
	defer s.remove(ws)

	// Clients send "info" frames we do not act on; reading also tells us
	// when the browser goes away.
	for {
		var msg Message
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			return
		}
	}
}

func (s *Server) remove(ws *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, ws)
	s.mu.Unlock()
}
