// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package glyphtest

import (
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/glyph/lib/frame"
)

// DefaultVersion is the getVersion reply of a server built with a nil
// handler.
const DefaultVersion = "Pointwise V18.4R1"

// Handler produces the reply to one request.
type Handler func(request frame.Frame) frame.Frame

// Hangup is a reply that makes the server close the connection instead
// of answering.
var Hangup = frame.Frame{Type: "HANGUP"}

// OK is a convenience for an OK reply carrying payload.
func OK(payload string) frame.Frame {
	return frame.Frame{Type: frame.TypeOK, Payload: payload}
}

// Fail is a convenience for an error reply carrying message.
func Fail(message string) frame.Frame {
	return frame.Frame{Type: "ERROR", Payload: message}
}

// Standard answers the requests every client makes on connect and on
// liveness checks: PING, "pw::Application getVersion", and CONTROL.
// Everything else goes to next, or gets an empty OK when next is nil.
func Standard(version string, next Handler) Handler {
	return func(request frame.Frame) frame.Frame {
		switch {
		case request.Type == frame.TypePing:
			return OK("OK")
		case request.Type == frame.TypeEval && request.Payload == "pw::Application getVersion":
			return OK(version)
		case request.Type == frame.TypeControl:
			_, value, found := strings.Cut(request.Payload, "=")
			if found {
				return OK(value)
			}
			return OK("")
		case next != nil:
			return next(request)
		default:
			return OK("")
		}
	}
}

// Server is a fake Glyph server. It serves one connection at a time, in
// order, like the real server.
type Server struct {
	listener net.Listener
	handler  Handler

	mu        sync.Mutex
	handshake func(auth string) frame.Frame
	requests  []frame.Frame
	accepted  int
	conn      net.Conn
	closed    bool

	done chan struct{}
}

// NewServer starts a Server and registers its shutdown with t.Cleanup.
// A nil handler means Standard(DefaultVersion, nil).
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()
	if handler == nil {
		handler = Standard(DefaultVersion, nil)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("glyphtest: listening: %v", err)
	}
	server := &Server{
		listener: listener,
		handler:  handler,
		done:     make(chan struct{}),
	}
	go server.serve()
	t.Cleanup(server.Close)
	return server
}

// SetHandshake replaces the AUTH reply policy. The default replies READY
// to any token.
func (s *Server) SetHandshake(reply func(auth string) frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshake = reply
}

// Host returns the listening address.
func (s *Server) Host() string { return "127.0.0.1" }

// Port returns the listening port.
func (s *Server) Port() int { return s.listener.Addr().(*net.TCPAddr).Port }

// Requests returns a copy of every frame received so far, AUTH
// included, across all connections.
func (s *Server) Requests() []frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frame.Frame(nil), s.requests...)
}

// Payloads returns the payloads of the received frames of the given
// type, in order.
func (s *Server) Payloads(requestType string) []string {
	var payloads []string
	for _, request := range s.Requests() {
		if request.Type == requestType {
			payloads = append(payloads, request.Payload)
		}
	}
	return payloads
}

// Accepted returns how many connections the server has accepted.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// DropConnection closes the current client connection from the server
// side.
func (s *Server) DropConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Close stops the server and waits for its goroutine to exit.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	s.listener.Close()
	<-s.done
}

func (s *Server) serve() {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.accepted++
		s.conn = conn
		s.mu.Unlock()

		s.serveConn(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	auth, err := s.receive(conn)
	if err != nil {
		return
	}
	s.mu.Lock()
	handshake := s.handshake
	s.mu.Unlock()

	reply := frame.Frame{Type: frame.TypeReady}
	if auth.Type != frame.TypeAuth {
		reply = Fail("expected AUTH")
	} else if handshake != nil {
		reply = handshake(auth.Payload)
	}
	if reply == Hangup {
		return
	}
	if err := frame.Write(conn, reply); err != nil || reply.Type != frame.TypeReady {
		return
	}

	for {
		request, err := s.receive(conn)
		if err != nil {
			return
		}
		reply := s.handler(request)
		if reply == Hangup {
			return
		}
		if err := frame.Write(conn, reply); err != nil {
			return
		}
	}
}

func (s *Server) receive(conn net.Conn) (frame.Frame, error) {
	request, err := frame.Read(conn)
	if err != nil {
		return frame.Frame{}, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()
	return request, nil
}
