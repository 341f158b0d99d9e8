// Package chat implements the core of the Parlor chat server: the room
// registry, per-connection sessions, the slash-command protocol, and file
// uploads.
//
// The implementation is organized into specialized files for configuration,
// transports, rooms, sessions, and command handling to keep the codebase
// maintainable and testable as the project grows.
package chat
