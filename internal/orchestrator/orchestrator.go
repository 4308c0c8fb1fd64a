// Package orchestrator implements the fan-out/combine engine: for each
// incoming request it builds one edict, submits it to every registered
// check pool, collects results under a deadline, and combines them into a
// single policy judgment.
package orchestrator

import (
	"time"

	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/queue"
	"github.com/samettonyali/gross/internal/registry"
)

// Judgment is the final policy answer handed back to the MTA.
type Judgment int

const (
	Accept Judgment = iota
	Grey
	Block
)

func (j Judgment) String() string {
	switch j {
	case Accept:
		return "ACCEPT"
	case Grey:
		return "GREY"
	case Block:
		return "BLOCK"
	default:
		return "ACCEPT"
	}
}

// Outcome is the combined verdict plus the reason surfaced by whichever
// result decided it, for logging and the Postfix response line.
type Outcome struct {
	Judgment Judgment
	Reason   string
}

// Orchestrator fans requests out to a registry.Registry of check pools.
type Orchestrator struct {
	Registry            *registry.Registry
	SuspiciousThreshold int
}

// New builds an Orchestrator over reg, with the configured weighted
// SUSPICIOUS threshold used to decide between GREY and ACCEPT when no
// definitive or BLOCK verdict is present.
func New(reg *registry.Registry, suspiciousThreshold int) *Orchestrator {
	if suspiciousThreshold < 1 {
		suspiciousThreshold = 1
	}
	return &Orchestrator{Registry: reg, SuspiciousThreshold: suspiciousThreshold}
}

// Handle constructs an edict for job, submits it to every registered
// check, and combines the results received before timeLimit elapses.
func (o *Orchestrator) Handle(job any, timeLimit time.Duration) Outcome {
	entries := o.Registry.Entries()
	definitive := definitiveByPool(entries)
	e := edict.New(job, timeLimit, false)
	defer e.Unlink()

	n := 0
	for _, entry := range entries {
		entry.Pool.Submit(e)
		n++
	}

	results := make([]edict.ChkResult, 0, n)
	received := 0
	for received < n {
		remaining := e.Remaining()
		if remaining <= 0 {
			break
		}
		v, outcome := e.Results.GetTimed(remaining)
		if outcome != queue.Msg {
			break
		}
		if v.Wait {
			results = append(results, v)
			continue
		}
		results = append(results, v)
		received++
		if definitive[v.Pool] && (v.Judgment == edict.Block || v.Judgment == edict.Pass) {
			break
		}
	}

	return o.combine(results, definitive)
}

// definitiveByPool maps each registered pool's name to whether the
// registry entry that owns it is definitive. The orchestrator consults
// this instead of trusting each check routine to repeat the flag on
// every ChkResult it sends.
func definitiveByPool(entries []registry.Entry) map[string]bool {
	m := make(map[string]bool, len(entries))
	for _, entry := range entries {
		m[entry.Name] = entry.Definitive
	}
	return m
}

// combine implements §4.5 step 4: any BLOCK dominates; otherwise a PASS
// from a definitive check wins; otherwise sum SUSPICIOUS weights against
// the configured threshold to choose between GREY and ACCEPT. The result
// is independent of arrival order except for the early-stop a definitive
// terminal verdict causes in Handle's collection loop.
func (o *Orchestrator) combine(results []edict.ChkResult, definitive map[string]bool) Outcome {
	weight := 0
	for _, r := range results {
		if r.Judgment == edict.Block {
			return Outcome{Judgment: Block, Reason: r.Reason}
		}
	}
	for _, r := range results {
		if definitive[r.Pool] && r.Judgment == edict.Pass {
			return Outcome{Judgment: Accept, Reason: r.Reason}
		}
	}
	for _, r := range results {
		if r.Judgment == edict.Suspicious {
			weight += r.Weight
		}
	}
	if weight >= o.SuspiciousThreshold {
		return Outcome{Judgment: Grey, Reason: "suspicious weight threshold reached"}
	}
	return Outcome{Judgment: Accept}
}
