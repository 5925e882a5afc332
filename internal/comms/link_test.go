package comms

import (
	"net"
	"testing"
	"time"

	"github.com/rjrssync/rjrssync/internal/crypto"
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessLinkSendRecv(t *testing.T) {
	boss, doer := NewInProcessPair()
	defer boss.Close()
	defer doer.Close()

	want := protocol.CmdSetRootOf("/tmp/src", protocol.DefaultBehaviourFlags())
	require.NoError(t, boss.Send(want))
	got, err := doer.Recv()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wantResp := protocol.RespRootDetailsOf(protocol.NewRootFolder())
	require.NoError(t, doer.Send(wantResp))
	gotResp, err := boss.Recv()
	require.NoError(t, err)
	assert.Equal(t, wantResp, gotResp)
}

func TestInProcessLinkCloseUnblocksPeer(t *testing.T) {
	boss, doer := NewInProcessPair()
	boss.Close()
	_, err := doer.Recv()
	assert.Error(t, err)
}

func tcpPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptCh <- c
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-acceptCh
	require.NotNil(t, server)
	return client, server
}

func TestTCPLinkSendRecvEncrypted(t *testing.T) {
	clientConn, serverConn := tcpPipe(t)
	key, err := crypto.NewKey()
	require.NoError(t, err)

	boss, err := NewTCPBossLink(clientConn, key)
	require.NoError(t, err)
	defer boss.Close()
	doer, err := NewTCPDoerLink(serverConn, key)
	require.NoError(t, err)
	defer doer.Close()

	want := protocol.CmdWriteFileChunkOf("sub/file2", 0, []byte("chunked bytes"), true)
	require.NoError(t, boss.Send(want))
	got, err := doer.Recv()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTCPLinkWrongKeyFailsToDecrypt(t *testing.T) {
	clientConn, serverConn := tcpPipe(t)
	key1, _ := crypto.NewKey()
	key2, _ := crypto.NewKey()

	boss, err := NewTCPBossLink(clientConn, key1)
	require.NoError(t, err)
	defer boss.Close()
	doer, err := NewTCPDoerLink(serverConn, key2)
	require.NoError(t, err)
	defer doer.Close()

	require.NoError(t, boss.Send(protocol.CmdShutdownOf()))
	_, err = doer.Recv()
	assert.Error(t, err)
}

func TestCreditGateBlocksOverCapacity(t *testing.T) {
	g := newCreditGate(16)
	require.False(t, g.Acquire(10))

	done := make(chan struct{})
	go func() {
		g.Acquire(10) // used(10)+10 > 16 and used>0, so this must block
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Acquire should have blocked above capacity")
	case <-time.After(100 * time.Millisecond):
	}
	g.Release(10)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire never unblocked after Release")
	}
}
