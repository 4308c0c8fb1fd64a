package spf

import (
	"context"
	"net"
	"strings"
)

// TXTResolver is the minimal DNS surface the bundled SPF evaluator needs:
// TXT records for the policy itself, and A/MX lookups for its mechanisms.
type TXTResolver interface {
	LookupTXT(ctx context.Context, domain string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, domain string) ([]string, error)
}

// StdTXTResolver wraps net.DefaultResolver.
type StdTXTResolver struct {
	Resolver *net.Resolver
}

func (r StdTXTResolver) resolver() *net.Resolver {
	if r.Resolver != nil {
		return r.Resolver
	}
	return net.DefaultResolver
}

func (r StdTXTResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	return r.resolver().LookupTXT(ctx, domain)
}

func (r StdTXTResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return r.resolver().LookupHost(ctx, host)
}

func (r StdTXTResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	mxs, err := r.resolver().LookupMX(ctx, domain)
	if err != nil {
		return nil, err
	}
	hosts := make([]string, len(mxs))
	for i, mx := range mxs {
		hosts[i] = mx.Host
	}
	return hosts, nil
}

// TXTEvaluator is the bundled default SPFEvaluator: a minimal v=spf1
// mechanism walk over ip4, a, mx, include, and all, sufficient to produce
// Pass/Fail/SoftFail/Neutral. It does not implement the full RFC 7208
// mechanism set (ip6, ptr, exists, redirect modifiers, recursion limits).
type TXTEvaluator struct {
	Resolver TXTResolver
}

func NewTXTEvaluator(resolver TXTResolver) *TXTEvaluator {
	if resolver == nil {
		resolver = StdTXTResolver{}
	}
	return &TXTEvaluator{Resolver: resolver}
}

func (e *TXTEvaluator) Evaluate(ctx context.Context, clientIP net.IP, helo, sender string) (Result, error) {
	domain := domainOf(sender)
	if domain == "" {
		domain = helo
	}
	if domain == "" {
		return None, nil
	}

	record, err := e.findSPFRecord(ctx, domain)
	if err != nil {
		return TempError, err
	}
	if record == "" {
		return None, nil
	}

	fields := strings.Fields(record)
	for _, field := range fields[1:] { // fields[0] is "v=spf1"
		q, mech := mechanismQualifier(field)
		switch {
		case mech == "all":
			return qualifierResult(q), nil
		case strings.HasPrefix(mech, "ip4:"):
			if matchIP4(clientIP, mech[len("ip4:"):]) {
				return qualifierResult(q), nil
			}
		case mech == "a" || strings.HasPrefix(mech, "a:"):
			target := domain
			if strings.HasPrefix(mech, "a:") {
				target = mech[len("a:"):]
			}
			if e.matchHost(ctx, clientIP, target) {
				return qualifierResult(q), nil
			}
		case mech == "mx" || strings.HasPrefix(mech, "mx:"):
			target := domain
			if strings.HasPrefix(mech, "mx:") {
				target = mech[len("mx:"):]
			}
			hosts, err := e.Resolver.LookupMX(ctx, target)
			if err == nil {
				for _, h := range hosts {
					if e.matchHost(ctx, clientIP, h) {
						return qualifierResult(q), nil
					}
				}
			}
		case strings.HasPrefix(mech, "include:"):
			included := mech[len("include:"):]
			result, err := e.Evaluate(ctx, clientIP, helo, "@"+included)
			if err == nil && result == Pass {
				return qualifierResult(q), nil
			}
		}
	}
	return Neutral, nil
}

func (e *TXTEvaluator) matchHost(ctx context.Context, clientIP net.IP, host string) bool {
	addrs, err := e.Resolver.LookupHost(ctx, host)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if net.ParseIP(a).Equal(clientIP) {
			return true
		}
	}
	return false
}

func matchIP4(clientIP net.IP, cidr string) bool {
	if !strings.Contains(cidr, "/") {
		return net.ParseIP(cidr).Equal(clientIP)
	}
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	return network.Contains(clientIP)
}

func (e *TXTEvaluator) findSPFRecord(ctx context.Context, domain string) (string, error) {
	txts, err := e.Resolver.LookupTXT(ctx, domain)
	if err != nil {
		return "", err
	}
	for _, txt := range txts {
		if strings.HasPrefix(txt, "v=spf1") {
			return txt, nil
		}
	}
	return "", nil
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
