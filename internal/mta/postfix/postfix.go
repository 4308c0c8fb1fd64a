// Package postfix implements a Postfix policy-delegation front-end: a
// line-oriented TCP listener where each connection sends "name=value"
// lines terminated by a blank line and receives a single "action=..."
// response line. One goroutine per connection, matching the teacher's
// per-request-goroutine style (internal/webhooks, internal/middleware) at
// this layer; the elastic pool machinery lives one layer down, in the
// check pools the orchestrator fans out to.
package postfix

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/orchestrator"
)

// Handler produces a combined judgment for a decoded request.
type Handler func(req request.Triplet) orchestrator.Outcome

// Server is the Postfix policy-delegation TCP listener.
type Server struct {
	Addr      string
	Handler   Handler
	TimeLimit time.Duration
	logger    *log.Logger
}

// New builds a postfix.Server listening on addr.
func New(addr string, handler Handler, timeLimit time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[postfix] ", log.LstdFlags)
	}
	if timeLimit <= 0 {
		timeLimit = 4 * time.Second
	}
	return &Server{Addr: addr, Handler: handler, TimeLimit: timeLimit, logger: logger}
}

// ListenAndServe accepts connections until the listener errors or is
// closed.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("postfix: listen %s: %w", s.Addr, err)
	}
	defer ln.Close()
	s.logger.Printf("postfix policy front-end listening on %s", s.Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.TimeLimit + time.Second))

	req, err := readRequest(conn)
	if err != nil {
		s.logger.Printf("malformed policy request from %s: %v", conn.RemoteAddr(), err)
		fmt.Fprintf(conn, "action=DUNNO\n\n")
		return
	}

	outcome := s.Handler(req)
	fmt.Fprintf(conn, "action=%s\n\n", actionFor(outcome))
}

// readRequest reads "name=value" lines up to a blank line, building a
// request.Triplet from the recognized Postfix attribute names.
func readRequest(conn net.Conn) (request.Triplet, error) {
	var req request.Triplet
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			return req, nil
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "client_address":
			req.ClientAddress = net.ParseIP(value)
		case "sender":
			req.Sender = value
		case "recipient":
			req.Recipient = value
		case "helo_name":
			req.Helo = value
		}
	}
	if err := scanner.Err(); err != nil {
		return req, err
	}
	return req, nil
}

// actionFor renders the combined judgment as a Postfix policy action.
func actionFor(o orchestrator.Outcome) string {
	switch o.Judgment {
	case orchestrator.Block:
		return "REJECT " + o.Reason
	case orchestrator.Grey:
		return "DEFER_IF_PERMIT greylisted, try again later"
	default:
		return "DUNNO"
	}
}
