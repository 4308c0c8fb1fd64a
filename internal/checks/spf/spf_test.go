package spf

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/samettonyali/gross/internal/edict"
	"github.com/samettonyali/gross/internal/mta/request"
)

type fixedEvaluator struct {
	result Result
	err    error
}

func (f fixedEvaluator) Evaluate(ctx context.Context, clientIP net.IP, helo, sender string) (Result, error) {
	return f.result, f.err
}

// S3: SPF FAIL yields a definitive BLOCK with the mandated reason.
func TestRoutineFailYieldsDefinitiveBlock(t *testing.T) {
	c := NewChecker(fixedEvaluator{result: Fail})
	e := edict.New(request.Triplet{Sender: "a@example.invalid"}, time.Second, false)
	c.Routine(nil, nil, e)

	v, _ := e.Results.GetTimed(time.Second)
	assert.Equal(t, edict.Block, v.Judgment)
	assert.Equal(t, "SPF policy violation", v.Reason)
	e.Unlink()
}

func TestRoutineSoftFailYieldsSuspicious(t *testing.T) {
	c := NewChecker(fixedEvaluator{result: SoftFail})
	e := edict.New(request.Triplet{}, time.Second, false)
	c.Routine(nil, nil, e)

	v, _ := e.Results.GetTimed(time.Second)
	assert.Equal(t, edict.Suspicious, v.Judgment)
	assert.Equal(t, 1, v.Weight)
	e.Unlink()
}

func TestRoutinePassYieldsUndefined(t *testing.T) {
	c := NewChecker(fixedEvaluator{result: Pass})
	e := edict.New(request.Triplet{}, time.Second, false)
	c.Routine(nil, nil, e)

	v, _ := e.Results.GetTimed(time.Second)
	assert.Equal(t, edict.Undefined, v.Judgment)
	e.Unlink()
}

type fakeTXTResolver struct {
	txt map[string][]string
	a   map[string][]string
}

func (f fakeTXTResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	return f.txt[domain], nil
}

func (f fakeTXTResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return f.a[host], nil
}

func (f fakeTXTResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	return nil, nil
}

func TestTXTEvaluatorIP4Match(t *testing.T) {
	r := fakeTXTResolver{txt: map[string][]string{
		"example.com": {"v=spf1 ip4:10.0.0.0/8 -all"},
	}}
	e := NewTXTEvaluator(r)
	result, err := e.Evaluate(context.Background(), net.ParseIP("10.1.2.3"), "", "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, Pass, result)
}

func TestTXTEvaluatorFallsThroughToAll(t *testing.T) {
	r := fakeTXTResolver{txt: map[string][]string{
		"example.com": {"v=spf1 ip4:192.0.2.0/24 -all"},
	}}
	e := NewTXTEvaluator(r)
	result, err := e.Evaluate(context.Background(), net.ParseIP("10.1.2.3"), "", "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, Fail, result)
}

func TestTXTEvaluatorNoRecordIsNone(t *testing.T) {
	r := fakeTXTResolver{txt: map[string][]string{}}
	e := NewTXTEvaluator(r)
	result, err := e.Evaluate(context.Background(), net.ParseIP("10.1.2.3"), "", "user@example.com")
	assert.NoError(t, err)
	assert.Equal(t, None, result)
}
