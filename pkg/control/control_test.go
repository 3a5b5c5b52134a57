package control_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/control"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/ifstore"
	"github.com/NuxiNL/corekernel/pkg/kernel"
	"github.com/NuxiNL/corekernel/pkg/rights"
)

func newTestKernel() *kernel.Kernel {
	store := ifstore.NewStatic(
		ifstore.Interface{Name: "lo", HWType: ifstore.Loopback},
		ifstore.Interface{Name: "eth0", HWType: ifstore.Ethernet, MAC: []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}},
	)
	return kernel.New(store, nil)
}

func sendRecv(t *testing.T, cs *control.ControlSocket, cmd string, fdCapacity int) (string, []int) {
	t.Helper()
	table := captable.New()
	_, err := cs.SockSend([][]byte{[]byte(cmd)})
	require.Equal(t, errno.Success, err)

	buf := make([]byte, 256)
	res, err := cs.SockRecv([][]byte{buf}, table, fdCapacity, 0)
	require.Equal(t, errno.Success, err)
	return string(buf[:res.Datalen]), res.FDs
}

func TestListReportsInterfacesInOrder(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	reply, fds := sendRecv(t, cs, "LIST", 0)
	assert.Equal(t, "lo\neth0\n", reply)
	assert.Empty(t, fds)
}

func TestMacOfUnknownInterface(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	reply, fds := sendRecv(t, cs, "MAC wlan0", 0)
	assert.Equal(t, "NOIFACE", reply)
	assert.Empty(t, fds)
}

func TestMacOfKnownInterface(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	reply, _ := sendRecv(t, cs, "MAC eth0", 0)
	assert.Equal(t, "de:ad:be:ef:00:01", reply)
}

func TestHWTypeLoopback(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	reply, _ := sendRecv(t, cs, "HWTYPE lo", 0)
	assert.Equal(t, "LOOPBACK", reply)
}

func TestPseudoPairInstallsReverseThenPseudo(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	table := captable.New()

	_, err := cs.SockSend([][]byte{[]byte("PSEUDOPAIR 4")})
	require.Equal(t, errno.Success, err)

	buf := make([]byte, 16)
	res, err := cs.SockRecv([][]byte{buf}, table, 2, 0)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, "OK", string(buf[:res.Datalen]))
	require.Len(t, res.FDs, 2)

	revCap, _, _, err := table.Get(res.FDs[0], rights.None)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, captable.KindStreamSocket, revCap.Kind())

	pseudoCap, _, _, err := table.Get(res.FDs[1], rights.None)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, captable.KindStreamSocket, pseudoCap.Kind())
}

func TestPseudoPairRejectsOutOfRangeFiletype(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	reply, fds := sendRecv(t, cs, "PSEUDOPAIR 999", 2)
	assert.Equal(t, "ERROR", reply)
	assert.Empty(t, fds)
}

func TestCopyYieldsAFreshControlSocket(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	table := captable.New()

	_, err := cs.SockSend([][]byte{[]byte("COPY")})
	require.Equal(t, errno.Success, err)

	buf := make([]byte, 16)
	res, err := cs.SockRecv([][]byte{buf}, table, 1, 0)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, "OK", string(buf[:res.Datalen]))
	require.Len(t, res.FDs, 1)

	copyCap, _, _, err := table.Get(res.FDs[0], rights.None)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, captable.KindControl, copyCap.Kind())
	assert.NotSame(t, cs, copyCap)
}

func TestSendBlocksUntilPreviousReplyDrained(t *testing.T) {
	cs := newTestKernel().NewControlSocket()
	table := captable.New()

	_, err := cs.SockSend([][]byte{[]byte("LIST")})
	require.Equal(t, errno.Success, err)

	done := make(chan errno.Errno, 1)
	go func() {
		_, err := cs.SockSend([][]byte{[]byte("LIST")})
		done <- err
	}()

	buf := make([]byte, 16)
	_, err = cs.SockRecv([][]byte{buf}, table, 0, 0)
	require.Equal(t, errno.Success, err)

	select {
	case err := <-done:
		assert.Equal(t, errno.Success, err)
	case <-time.After(time.Second):
		t.Fatal("second SockSend never unblocked after the reply was drained")
	}
}
