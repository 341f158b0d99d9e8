// Package chat exposes the HTTP surface: a health check and the websocket
// endpoint used by graphical clients. An upgraded websocket runs the same
// handshake and session lifecycle as a raw TCP connection.
package chat

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Routes configures and returns an HTTP ServeMux with all application routes.
func (srv *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.HealthHandler)
	mux.HandleFunc("/ws", srv.WebSocketHandler)
	return mux
}

// HealthHandler provides a simple health check endpoint.
func (srv *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Parlor chat server is running!")
}

// WebSocketHandler upgrades the request and hands the connection to the chat
// server as a Channel.
func (srv *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.ServeChannel(NewWebSocketChannel(conn, srv.cfg.MaxMessageSize))
	}()
}

// NewHTTPServer creates an HTTP server with timeouts suited for production
// use. Upgraded websocket connections are not subject to these timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
