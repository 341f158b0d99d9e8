// Package chat runs the connection lifecycle: accept, handshake, the paired
// read/write duties, and once-only teardown.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// errQueueClosed ends the write duty when the session's queues were closed
// by its room (slow-client drop or teardown racing ahead).
var errQueueClosed = errors.New("outbound queue closed")

// Server owns the room registry, the upload store, and every live
// connection. One Server instance serves both the raw TCP listener and
// websocket connections handed over by the HTTP layer.
type Server struct {
	cfg      Config
	registry *Registry
	uploads  *UploadStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener

	allowedOrigins map[string]struct{}
	allowAll       bool
}

// NewServer creates a server from the given configuration (nil means
// defaults), sanitizing it and creating the upload directory.
func NewServer(cfg *Config) (*Server, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c = c.sanitized()

	uploads, err := NewUploadStore(c.UploadDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		cfg:      c,
		registry: NewRegistry(),
		uploads:  uploads,
		ctx:      ctx,
		cancel:   cancel,
	}
	srv.allowedOrigins, srv.allowAll = normalizeOrigins(c.AllowedOrigins)
	return srv, nil
}

// Registry exposes the room registry, primarily for inspection.
func (srv *Server) Registry() *Registry { return srv.registry }

// Uploads exposes the upload store.
func (srv *Server) Uploads() *UploadStore { return srv.uploads }

// ListenAndServe accepts TCP connections on the configured address and
// serves each on its own goroutine. It returns nil after Shutdown closes the
// listener.
func (srv *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", srv.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.cfg.ListenAddr, err)
	}
	srv.mu.Lock()
	srv.listener = ln
	srv.mu.Unlock()

	log.Printf("chat server listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("accept error: %v", err)
			continue
		}

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.ServeChannel(NewLineChannel(conn, srv.cfg.MaxMessageSize))
		}()
	}
}

// ServeChannel runs the full lifecycle of one client connection: handshake,
// then the read and write duties until either ends, then teardown. It
// returns when the connection is finished and never panics the caller.
func (srv *Server) ServeChannel(ch Channel) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic serving %s: %v", ch.RemoteAddr(), r)
		}
		_ = ch.Close()
	}()

	ctx, cancel := context.WithCancel(srv.ctx)
	defer cancel()

	// Receive blocks on the socket; closing the channel is how cancellation
	// reaches a blocked read.
	go func() {
		<-ctx.Done()
		_ = ch.Close()
	}()

	s, err := srv.handshake(ch)
	if err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("handshake with %s failed: %v", ch.RemoteAddr(), err)
		}
		return
	}
	log.Printf("%s connected from %s", s.name, ch.RemoteAddr())

	// The first duty to fail cancels the group context; the watcher closes
	// the channel so the sibling blocked on I/O observes it promptly.
	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		_ = ch.Close()
	}()

	g.Go(func() error { return srv.readLoop(s) })
	g.Go(func() error { return srv.writeLoop(gctx, s) })

	if err := g.Wait(); err != nil &&
		!errors.Is(err, errQuit) &&
		!errors.Is(err, errQueueClosed) &&
		!errors.Is(err, context.Canceled) &&
		!isExpectedCloseError(err) {
		log.Printf("connection with %s ended: %v", s.name, err)
	}

	srv.finish(s)
}

// handshake prompts for a display name and a room name over the channel and
// joins the session to the room. EOF before completion aborts with no
// membership created.
func (srv *Server) handshake(ch Channel) (*Session, error) {
	if err := ch.Send(Request("Enter your username:")); err != nil {
		return nil, err
	}
	name, err := ch.Receive()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = guestName()
	}

	if err := ch.Send(Request("Enter room name:")); err != nil {
		return nil, err
	}
	roomName, err := ch.Receive()
	if err != nil {
		return nil, err
	}
	if roomName == "" {
		roomName = srv.cfg.DefaultRoom
	}

	s := newSession(name, roomName, ch, srv.cfg.RateLimit)
	srv.registry.Join(roomName, s)

	welcome := fmt.Sprintf("Welcome to room '%s'! (Type /help for commands)", roomName)
	if err := ch.Send(Success(welcome)); err != nil {
		srv.finish(s)
		return nil, err
	}
	return s, nil
}

// readLoop consumes inbound lines and routes them to the room or the command
// interpreter until the peer disconnects or quits.
func (srv *Server) readLoop(s *Session) error {
	awaitingPath := false

	for {
		line, err := s.ch.Receive()
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		if !s.limiter.allow() {
			log.Printf("rate limit exceeded for %s; discarding line", s.name)
			continue
		}

		awaitingPath, err = srv.handleLine(s, line, awaitingPath)
		if err != nil {
			return err
		}
	}
}

// writeLoop drains the session's room feed and private inbox onto the
// channel. Per-queue order is preserved; no ordering holds across the two
// queues.
func (srv *Server) writeLoop(ctx context.Context, s *Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.feed:
			if !ok {
				return errQueueClosed
			}
			if err := s.ch.Send(msg); err != nil {
				return err
			}
		case msg, ok := <-s.inbox:
			if !ok {
				return errQueueClosed
			}
			if err := s.ch.Send(msg); err != nil {
				return err
			}
		}
	}
}

// finish removes the session from its room and deregisters the room if it
// emptied. Both duties may race to end the connection; the work runs exactly
// once.
func (srv *Server) finish(s *Session) {
	s.teardown.Do(func() {
		srv.registry.Leave(s.room, s)
		log.Printf("%s disconnected", s.name)
	})
}

// Shutdown stops accepting connections, cancels every connection's duties,
// and waits for them to finish or the timeout to elapse.
func (srv *Server) Shutdown(timeout time.Duration) error {
	log.Println("shutting down chat server...")

	srv.cancel()
	srv.mu.Lock()
	if srv.listener != nil {
		_ = srv.listener.Close()
	}
	srv.mu.Unlock()

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("chat server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("chat server shutdown timeout reached, some connections may still be open")
		return context.DeadlineExceeded
	}
}
