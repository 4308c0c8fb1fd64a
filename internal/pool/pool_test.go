package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samettonyali/gross/internal/edict"
)

func TestSubmitRunsRoutine(t *testing.T) {
	var ran sync.WaitGroup
	ran.Add(1)
	p := New("test", func(p *Pool, tc *ThreadContext, e *edict.Edict) {
		e.SendResult(edict.ChkResult{Judgment: edict.Pass, Pool: "test"})
		ran.Done()
	}, 1, 4, nil)

	e := edict.New("job", time.Second, false)
	p.Submit(e)

	done := make(chan struct{})
	go func() { ran.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("routine did not run")
	}

	v, outcome := e.Results.GetTimed(time.Second)
	require.Equal(t, 0, int(outcome))
	assert.Equal(t, edict.Pass, v.Judgment)
	e.Unlink()
}

func TestPoolGrowsUnderConcurrentLoad(t *testing.T) {
	release := make(chan struct{})
	p := New("busy", func(p *Pool, tc *ThreadContext, e *edict.Edict) {
		<-release
		e.SendResult(edict.ChkResult{Judgment: edict.Pass})
	}, 1, 4, nil)

	edicts := make([]*edict.Edict, 3)
	for i := range edicts {
		edicts[i] = edict.New("job", time.Second, false)
		p.Submit(edicts[i])
	}

	require.Eventually(t, func() bool {
		return p.Stats().Threads >= 3
	}, time.Second, 5*time.Millisecond)

	close(release)
	for _, e := range edicts {
		e.Results.GetTimed(time.Second)
		e.Unlink()
	}
}

func TestPanicInRoutineYieldsUndefined(t *testing.T) {
	p := New("panicky", func(p *Pool, tc *ThreadContext, e *edict.Edict) {
		panic("boom")
	}, 1, 2, nil)

	e := edict.New("job", time.Second, false)
	p.Submit(e)

	v, outcome := e.Results.GetTimed(time.Second)
	require.Equal(t, 0, int(outcome))
	assert.Equal(t, edict.Undefined, v.Judgment)
	e.Unlink()
}

func TestCleanupCalledOnExit(t *testing.T) {
	var cleaned bool
	p := New("cleanup", func(p *Pool, tc *ThreadContext, e *edict.Edict) {
		if tc.Cleanup == nil {
			tc.Cleanup = func() { cleaned = true }
		}
		e.SendResult(edict.ChkResult{Judgment: edict.Pass})
	}, 1, 1, nil)

	e := edict.New("job", time.Second, false)
	p.Submit(e)
	e.Results.GetTimed(time.Second)
	e.Unlink()

	p.Shutdown()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, cleaned)
}
