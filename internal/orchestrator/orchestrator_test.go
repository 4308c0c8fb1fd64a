package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/pool"
	"github.com/samettonyali/gross/internal/registry"
)

func poolWithRoutine(name string, fn pool.Routine) *pool.Pool {
	return pool.New(name, fn, 1, 2, nil)
}

// S1: only greylist registered, first-time triplet -> GREY.
func TestHandleSoleGreylistFirstSightingYieldsGrey(t *testing.T) {
	seen := false
	reg := registry.New()
	reg.Add(registry.Entry{Name: "greylist", Pool: poolWithRoutine("greylist", func(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
		if seen {
			e.SendResult(edict.ChkResult{Judgment: edict.Pass, Pool: "greylist"})
			return
		}
		seen = true
		e.SendResult(edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "greylist"})
	})})

	o := New(reg, 1)
	out := o.Handle("job", time.Second)
	assert.Equal(t, Grey, out.Judgment)

	out2 := o.Handle("job", time.Second)
	assert.Equal(t, Accept, out2.Judgment)
}

// S2: greylist + non-definitive DNSBL both registered, DNSBL matches ->
// GREY with suspicious weight >= 1.
func TestHandleGreylistPlusDNSBLYieldsGrey(t *testing.T) {
	reg := registry.New()
	reg.Add(registry.Entry{Name: "greylist", Pool: poolWithRoutine("greylist", func(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
		e.SendResult(edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "greylist"})
	})})
	reg.Add(registry.Entry{Name: "dnsbl", Definitive: false, Pool: poolWithRoutine("dnsbl", func(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
		e.SendResult(edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "dnsbl"})
	})})

	o := New(reg, 1)
	out := o.Handle("job", time.Second)
	assert.Equal(t, Grey, out.Judgment)
}

// S3: definitive SPF FAIL yields BLOCK regardless of other checks.
func TestHandleDefinitiveBlockDominates(t *testing.T) {
	reg := registry.New()
	reg.Add(registry.Entry{Name: "greylist", Pool: poolWithRoutine("greylist", func(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
		e.SendResult(edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "greylist"})
	})})
	reg.Add(registry.Entry{Name: "spf", Definitive: true, Pool: poolWithRoutine("spf", func(p *pool.Pool, tc *pool.ThreadContext, e *edict.Edict) {
		e.SendResult(edict.ChkResult{Judgment: edict.Block, Pool: "spf", Reason: "SPF policy violation"})
	})})

	o := New(reg, 1)
	out := o.Handle("job", time.Second)
	assert.Equal(t, Block, out.Judgment)
	assert.Equal(t, "SPF policy violation", out.Reason)
}

// Property 7: combination is independent of arrival order for a fixed
// multiset of results (outside of early-stop on a definitive terminal).
func TestCombineIndependentOfOrder(t *testing.T) {
	o := New(registry.New(), 2)
	a := edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "a"}
	b := edict.ChkResult{Judgment: edict.Suspicious, Weight: 1, Pool: "b"}
	c := edict.ChkResult{Judgment: edict.Pass, Pool: "c"}
	definitive := map[string]bool{"c": true}

	out1 := o.combine([]edict.ChkResult{a, b, c}, definitive)
	out2 := o.combine([]edict.ChkResult{c, b, a}, definitive)
	assert.Equal(t, out1.Judgment, out2.Judgment)
}

func TestHandleNoChecksRegisteredYieldsAccept(t *testing.T) {
	o := New(registry.New(), 1)
	out := o.Handle("job", time.Second)
	require.Equal(t, Accept, out.Judgment)
}
