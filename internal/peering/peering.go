// Package peering implements the thin peer-replication client: when
// peerhost is configured and replication isn't disabled by -r, inserted
// triplets are forwarded to a peer over a minimal TCP-line protocol. Full
// synchronization and cryptographic integrity are out of scope; this is
// "something that listens/sends on peerhost:peerport" so the daemon is a
// runnable two-node setup, not a verified replication protocol.
package peering

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// Replicator is the seam cmd/grossd wires a check's insert events
// through. NoopReplicator is used whenever peerhost is empty or -r is
// set.
type Replicator interface {
	Replicate(ctx context.Context, key string) error
}

// NoopReplicator discards every triplet; the default when replication is
// disabled.
type NoopReplicator struct{}

func (NoopReplicator) Replicate(context.Context, string) error { return nil }

// TCPReplicator sends "INSERT <key>\n" lines to a single configured peer,
// reconnecting lazily on the next call after a failure. Replicate is
// called concurrently from every greylist worker goroutine, so access to
// conn is guarded by mu.
type TCPReplicator struct {
	Addr   string
	logger *log.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPReplicator builds a replicator targeting addr (host:port).
func NewTCPReplicator(addr string, logger *log.Logger) *TCPReplicator {
	if logger == nil {
		logger = log.New(log.Writer(), "[peering] ", log.LstdFlags)
	}
	return &TCPReplicator{Addr: addr, logger: logger}
}

// Replicate sends key to the configured peer, dialing if needed.
func (r *TCPReplicator) Replicate(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		d := net.Dialer{}
		conn, err := d.DialContext(ctx, "tcp", r.Addr)
		if err != nil {
			return fmt.Errorf("peering: dial %s: %w", r.Addr, err)
		}
		r.conn = conn
	}

	if deadline, ok := ctx.Deadline(); ok {
		r.conn.SetWriteDeadline(deadline)
	} else {
		r.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	}

	if _, err := fmt.Fprintf(r.conn, "INSERT %s\n", key); err != nil {
		r.logger.Printf("replication write to %s failed, will redial: %v", r.Addr, err)
		r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}

// Close releases the underlying connection, if any.
func (r *TCPReplicator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
