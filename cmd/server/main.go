// Command server runs the Parlor chat server: a TCP listener speaking the
// line-delimited JSON protocol plus an HTTP listener for websocket clients.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/parlorchat/parlor/internal/chat"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("Starting Parlor chat server...")

	cfg := chat.NewConfigFromEnv()

	srv, err := chat.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	log.Printf("Upload directory: %s", srv.Uploads().Dir())

	httpServer := chat.NewHTTPServer(cfg.HTTPAddr, srv.Routes())

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("Chat listener failed: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Block until SIGINT/SIGTERM, then drain both listeners.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat-server": func(ctx context.Context) error {
				return srv.Shutdown(shutdownTimeout)
			},
			"http-server": func(ctx context.Context) error {
				return httpServer.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}
