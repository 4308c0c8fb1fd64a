package postfix

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samettonyali/gross/internal/mta/request"
	"github.com/samettonyali/gross/internal/orchestrator"
)

func TestHandleConnGreyRequest(t *testing.T) {
	var gotReq request.Triplet
	handler := func(req request.Triplet) orchestrator.Outcome {
		gotReq = req
		return orchestrator.Outcome{Judgment: orchestrator.Grey}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(ln.Addr().String(), handler, time.Second, nil)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.handleConn(conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("client_address=10.0.0.1\nsender=a@x\nrecipient=b@y\n\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "action=DEFER_IF_PERMIT greylisted, try again later\n", line)
	assert.Equal(t, "a@x", gotReq.Sender)
	assert.Equal(t, "10.0.0.1", gotReq.ClientAddress.String())
}

func TestActionForMapping(t *testing.T) {
	assert.Equal(t, "DUNNO", actionFor(orchestrator.Outcome{Judgment: orchestrator.Accept}))
	assert.Equal(t, "DEFER_IF_PERMIT greylisted, try again later", actionFor(orchestrator.Outcome{Judgment: orchestrator.Grey}))
	assert.Equal(t, "REJECT SPF policy violation", actionFor(orchestrator.Outcome{Judgment: orchestrator.Block, Reason: "SPF policy violation"}))
}
