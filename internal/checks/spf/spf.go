// Package spf implements the SPF policy check: evaluate (client IP, HELO,
// envelope sender) against an SPFEvaluator and map the result onto a
// judgment. Registered as the registry's one definitive check, so a FAIL
// here can short-circuit the orchestrator before slower checks finish.
//
// The SPFEvaluator interface is the seam the spec draws around "the SPF
// library" being out of scope: the bundled default does a minimal TXT
// mechanism walk, not a full RFC 7208 implementation.
package spf

import (
	"context"
	"net"

	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/pool"
)

// Result is an SPF evaluation outcome.
type Result int

const (
	None Result = iota
	Neutral
	Pass
	Fail
	SoftFail
	TempError
	PermError
)

// SPFEvaluator is the seam a check consumes to evaluate SPF policy.
type SPFEvaluator interface {
	Evaluate(ctx context.Context, clientIP net.IP, helo, sender string) (Result, error)
}

// Checker holds the configured evaluator for the SPF worker pool's
// routine.
type Checker struct {
	Evaluator SPFEvaluator
}

func NewChecker(evaluator SPFEvaluator) *Checker {
	if evaluator == nil {
		evaluator = NewTXTEvaluator(nil)
	}
	return &Checker{Evaluator: evaluator}
}

// Routine is the pool.Routine for the SPF check. Mapping, exactly per the
// behavioral contract: FAIL -> BLOCK "SPF policy violation"; SOFTFAIL ->
// SUSPICIOUS weight 1; PASS and everything else -> UNDEFINED.
func (c *Checker) Routine(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
	req, ok := e.Job.(request.Triplet)
	if !ok {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "spf", Reason: "not a triplet"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.Remaining())
	defer cancel()

	result, err := c.Evaluator.Evaluate(ctx, req.ClientAddress, req.Helo, req.Sender)
	if err != nil {
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "spf", Reason: err.Error()})
		return
	}

	switch result {
	case Fail:
		e.SendResult(edict.ChkResult{Judgment: edict.Block, Pool: "spf", Reason: "SPF policy violation"})
	case SoftFail:
		e.SendResult(edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "spf", Reason: "SPF softfail"})
	default:
		e.SendResult(edict.ChkResult{Judgment: edict.Undefined, Pool: "spf"})
	}
}

// mechanismQualifier is the leading +/-/~/? on an SPF mechanism; default
// (absent) qualifier is "+" (pass).
func mechanismQualifier(mech string) (byte, string) {
	if mech == "" {
		return '+', mech
	}
	switch mech[0] {
	case '+', '-', '~', '?':
		return mech[0], mech[1:]
	default:
		return '+', mech
	}
}

// qualifierResult maps an SPF qualifier onto a Result given a matching
// mechanism.
func qualifierResult(q byte) Result {
	switch q {
	case '-':
		return Fail
	case '~':
		return SoftFail
	case '?':
		return Neutral
	default:
		return Pass
	}
}
