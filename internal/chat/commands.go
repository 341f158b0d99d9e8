// Package chat implements the slash-command interpreter that classifies each
// inbound line from a connected client.
package chat

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

const helpText = `=== Available Commands ===
/help - show this help
/list - show room members
/private @name message - send private message
/file [path] - upload file
/quit - exit chat`

// errQuit signals a client-requested graceful close. It terminates the read
// duty; state cleanup is identical to an abrupt disconnect.
var errQuit = errors.New("client quit")

// handleLine classifies one inbound line. awaitingPath is true when the
// previous line was a bare /file command, in which case this line is the
// upload path. It returns the awaitingPath state for the next line.
func (srv *Server) handleLine(s *Session, line string, awaitingPath bool) (bool, error) {
	if awaitingPath {
		return false, srv.uploadFile(s, line)
	}

	if !strings.HasPrefix(line, "/") {
		if room := srv.registry.Lookup(s.room); room != nil {
			room.Post(s, line)
		}
		return false, nil
	}

	return srv.handleCommand(s, line)
}

func (srv *Server) handleCommand(s *Session, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "/help":
		return false, s.ch.Send(System(helpText))

	case "/list":
		room := srv.registry.Lookup(s.room)
		if room == nil {
			return false, nil
		}
		return false, s.ch.Send(System(room.memberList()))

	case "/private":
		return false, srv.handlePrivate(s, rest)

	case "/file":
		if rest == "" {
			// Path arrives on the next line.
			return true, s.ch.Send(Request("Send file path to upload"))
		}
		return false, srv.uploadFile(s, rest)

	case "/quit":
		return false, errQuit

	default:
		return false, s.ch.Send(Errorf("Unknown command: %s (type /help for commands)", cmd))
	}
}

func (srv *Server) handlePrivate(s *Session, rest string) error {
	target, text, _ := strings.Cut(rest, " ")
	target = strings.TrimPrefix(target, "@")
	text = strings.TrimSpace(text)

	if target == "" || text == "" {
		return s.ch.Send(Errorf("Usage: /private @name message"))
	}

	room := srv.registry.Lookup(s.room)
	if room == nil {
		return nil
	}

	if room.SendPrivate(s, target, text) {
		return s.ch.Send(System("Private message sent to " + target))
	}
	return s.ch.Send(Errorf("User %s not found", target))
}

func (srv *Server) uploadFile(s *Session, path string) error {
	up, err := srv.uploads.Save(path)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.ch.Send(Errorf("File not found: %s", up.Source))
	case errors.Is(err, ErrNotFile):
		return s.ch.Send(Errorf("Path is not a file: %s", up.Source))
	case err != nil:
		log.Printf("upload from %s failed: %v", s.name, err)
		return s.ch.Send(Errorf("File upload error: %v", err))
	}

	confirm := fmt.Sprintf("File %s uploaded successfully (%d bytes)", up.Name, up.Size)
	if err := s.ch.Send(System(confirm)); err != nil {
		return err
	}

	if room := srv.registry.Lookup(s.room); room != nil {
		room.broadcast(Notice(fmt.Sprintf("%s uploaded file: %s", s.name, up.Name)), nil)
	}
	return nil
}
