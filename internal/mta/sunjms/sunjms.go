// Package sunjms implements a minimal UDP request/response front-end
// decoding the same triplet fields from a flat key=value datagram, so the
// daemon can bind a status_host/syncport-style UDP socket. Deliberately
// thin: the original SunJMS integration is an external collaborator out
// of scope for behavioral fidelity.
package sunjms

import (
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

// Server is the SunJMS-style UDP listener.
type Server struct {
	Addr    string
	Handler Handler
	logger  *log.Logger
}

// New builds a sunjms.Server listening on addr.
func New(addr string, handler Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[sunjms] ", log.LstdFlags)
	}
	return &Server{Addr: addr, Handler: handler, logger: logger}
}

// ListenAndServe reads datagrams until the socket errors or is closed.
func (s *Server) ListenAndServe() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("sunjms: resolve %s: %w", s.Addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("sunjms: listen %s: %w", s.Addr, err)
	}
	defer conn.Close()
	s.logger.Printf("sunjms front-end listening on %s", s.Addr)

	buf := make([]byte, 4096)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		req := decode(string(buf[:n]))
		outcome := s.Handler(req)
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteToUDP([]byte("action="+actionFor(outcome)+"\n"), from)
	}
}

// decode parses a flat "key=value&key=value" (or newline-separated)
// datagram into a request.Triplet.
func decode(datagram string) request.Triplet {
	var req request.Triplet
	fields := strings.FieldsFunc(datagram, func(r rune) bool { return r == '&' || r == '\n' })
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
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
	return req
}

func actionFor(o orchestrator.Outcome) string {
	switch o.Judgment {
	case orchestrator.Block:
		return "REJECT"
	case orchestrator.Grey:
		return "DEFER"
	default:
		return "DUNNO"
	}
}
