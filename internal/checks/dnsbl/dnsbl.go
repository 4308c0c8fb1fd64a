// Package dnsbl implements the DNS block/allow-list check: for each
// configured zone with tolerance budget remaining, query
// <reversed-ip>.<zone> and judge on the first A-record match, honoring the
// edict's aggregate deadline.
//
// The DNSResolver interface is the seam the spec draws around "the DNS
// resolver wrapper" being out of scope: only how the check consumes a
// resolver is specified, not the resolver's own implementation.
package dnsbl

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/samettonyali/gross/internal/checks/tolerance"
	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/pool"
)

// DNSResolver is the seam a check consumes to resolve A records. The
// bundled default wraps net.Resolver.
type DNSResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// StdResolver is the default DNSResolver, a thin wrapper over
// net.DefaultResolver.
type StdResolver struct {
	Resolver *net.Resolver
}

func (r StdResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	return res.LookupHost(ctx, host)
}

// Zone is one configured list to query, and whether a match on it means
// block (a DNSBL) or allow (a DNSWL).
type Zone struct {
	Name      string
	Allowlist bool
	Tolerance *tolerance.Counter
}

// Checker holds the configured zones and shared resolver for the DNSBL
// worker pool's routine.
type Checker struct {
	Zones    []Zone
	Resolver DNSResolver
}

// NewChecker builds a Checker over the given zones, defaulting to
// StdResolver when resolver is nil.
func NewChecker(zones []Zone, resolver DNSResolver) *Checker {
	if resolver == nil {
		resolver = StdResolver{}
	}
	return &Checker{Zones: zones, Resolver: resolver}
}

// ReverseInetAddr reverses a dotted-quad IPv4 address into DNSBL query
// label order, e.g. "1.2.3.4" -> "4.3.2.1". Ported from
// reverse_inet_addr in original_source/trunk/src/check_dnsbl.c.
func ReverseInetAddr(ip net.IP) (string, error) {
	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("dnsbl: not an IPv4 address: %s", ip)
	}
	parts := make([]string, 4)
	for i := 0; i < 4; i++ {
		parts[3-i] = strconv.Itoa(int(v4[i]))
	}
	return strings.Join(parts, "."), nil
}

// Routine is the pool.Routine for the DNSBL/DNSWL check: fan out one
// lookup per zone with tolerance budget, first verdict (or the aggregate
// timeout) wins.
func (c *Checker) Routine(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
	req, ok := e.Job.(request.Triplet)
	if !ok {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "dnsbl", Reason: "not a triplet"})
		return
	}

	reversed, err := ReverseInetAddr(req.ClientAddress)
	if err != nil {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "dnsbl", Reason: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.Remaining())
	defer cancel()

	type verdict struct {
		judgment edict.Judgment
		reason   string
	}
	results := make(chan verdict, len(c.Zones))
	var wg sync.WaitGroup

	for _, z := range c.Zones {
		if !z.Tolerance.Positive() {
			continue
		}
		z := z
		wg.Add(1)
		go func() {
			defer wg.Done()
			label := reversed + "." + z.Name
			_, err := c.Resolver.LookupHost(ctx, label)
			if err != nil {
				if ctx.Err() != nil {
					z.Tolerance.Charge()
				}
				return
			}
			j := edict.Suspicious
			if z.Allowlist {
				j = edict.Pass
			}
			select {
			case results <- verdict{judgment: j, reason: "listed on " + z.Name}:
			default:
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	select {
	case v, ok := <-results:
		if ok {
			e.SendResult(edict.ChkResult{Judgment: v.judgment, Weight: 1, Reason: v.reason, Pool: "dnsbl"})
			return
		}
	case <-ctx.Done():
	}
	e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "dnsbl"})
}
