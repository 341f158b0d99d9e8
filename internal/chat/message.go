// Package chat defines the wire message format exchanged between the server
// and its clients: one JSON record per line (or per websocket frame).
package chat

import (
	"fmt"
	"time"
)

// Kind identifies the type of a wire message.
type Kind string

// Message kinds understood by clients.
const (
	KindRequest Kind = "request" // server prompting the client for input
	KindSystem  Kind = "system"  // server notices and command replies
	KindSuccess Kind = "success" // positive acknowledgements
	KindError   Kind = "error"   // recoverable faults reported to the client
	KindRoom    Kind = "message" // room broadcast chat
	KindPrivate Kind = "private" // direct message to a single session
)

// timeLayout is the human-readable timestamp carried by stamped messages.
const timeLayout = "2006-01-02 15:04:05"

// Message is the single wire record. Which fields are populated depends on
// the kind: request/success use Message, the rest use Content; room messages
// carry Sender, private messages carry From.
type Message struct {
	Type    Kind   `json:"type"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
	Sender  string `json:"sender,omitempty"`
	From    string `json:"from,omitempty"`
	Time    string `json:"time,omitempty"`
}

// Request builds a message prompting the client for one line of input.
func Request(prompt string) Message {
	return Message{Type: KindRequest, Message: prompt}
}

// Success builds a positive acknowledgement.
func Success(text string) Message {
	return Message{Type: KindSuccess, Message: text}
}

// System builds an unstamped system reply (help text, member lists).
func System(content string) Message {
	return Message{Type: KindSystem, Content: content}
}

// Notice builds a timestamped system notice (joins, leaves, uploads).
func Notice(content string) Message {
	return Message{Type: KindSystem, Content: content, Time: timestamp()}
}

// Errorf builds an error message for the client.
func Errorf(format string, args ...any) Message {
	return Message{Type: KindError, Content: fmt.Sprintf(format, args...)}
}

// RoomMessage builds a broadcast chat message from the named sender.
func RoomMessage(sender, content string) Message {
	return Message{Type: KindRoom, Sender: sender, Content: content, Time: timestamp()}
}

// Private builds a direct message from the named sender.
func Private(from, content string) Message {
	return Message{Type: KindPrivate, From: from, Content: content, Time: timestamp()}
}

func timestamp() string {
	return time.Now().Format(timeLayout)
}
