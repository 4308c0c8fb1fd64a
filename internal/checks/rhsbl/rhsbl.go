// Package rhsbl implements the right-hand-side blocklist check: identical
// machinery to dnsbl, but the query label is the sender's domain rather
// than the reversed client address.
package rhsbl

import (
	"context"
	"strings"
	"sync"

	"github.com/samettonyali/gross/internal/checks/dnsbl"
	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/pool"
)

// Zone reuses dnsbl.Zone's shape; RHSBL zones carry their own tolerance
// counters, independent from any DNSBL zones configured alongside them.
type Zone = dnsbl.Zone

// Checker mirrors dnsbl.Checker, sharing its DNSResolver seam.
type Checker struct {
	Zones    []Zone
	Resolver dnsbl.DNSResolver
}

func NewChecker(zones []Zone, resolver dnsbl.DNSResolver) *Checker {
	if resolver == nil {
		resolver = dnsbl.StdResolver{}
	}
	return &Checker{Zones: zones, Resolver: resolver}
}

// senderDomain extracts the right-hand side of an envelope sender address.
func senderDomain(sender string) string {
	at := strings.LastIndex(sender, "@")
	if at < 0 || at == len(sender)-1 {
		return ""
	}
	return strings.ToLower(sender[at+1:])
}

// Routine is the pool.Routine for the RHSBL check.
func (c *Checker) Routine(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
	req, ok := e.Job.(request.Triplet)
	if !ok {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "rhsbl", Reason: "not a triplet"})
		return
	}

	domain := senderDomain(req.Sender)
	if domain == "" {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "rhsbl", Reason: "no sender domain"})
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
			label := domain + "." + z.Name
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
			e.SendResult(edict.ChkResult{Judgment: v.judgment, Weight: 1, Reason: v.reason, Pool: "rhsbl"})
			return
		}
	case <-ctx.Done():
	}
	e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "rhsbl"})
}
