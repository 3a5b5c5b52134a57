package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/ifstore"
	"github.com/NuxiNL/corekernel/pkg/kernel"
	"github.com/NuxiNL/corekernel/pkg/rights"
	"github.com/NuxiNL/corekernel/pkg/signaler"
)

func TestNewControlSocketIsUsable(t *testing.T) {
	k := kernel.New(ifstore.NewStatic(ifstore.Interface{Name: "lo"}), nil)
	cs := k.NewControlSocket()

	_, err := cs.SockSend([][]byte{[]byte("LIST")})
	require.Equal(t, errno.Success, err)

	table := captable.New()
	buf := make([]byte, 16)
	res, err := cs.SockRecv([][]byte{buf}, table, 0, 0)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, "lo\n", string(buf[:res.Datalen]))
}

func TestProcessExitDrainsTableAndWakesTermination(t *testing.T) {
	p := kernel.NewProcess(nil)
	k := kernel.New(nil, nil)
	cs := k.NewControlSocket()
	slot := p.Table.Add(cs, rights.All, rights.All)

	_, ch := p.TerminationSignaler.Attach(func() (bool, signaler.ConditionData) { return false, nil })

	p.Exit()
	assert.True(t, p.Terminated())

	select {
	case <-ch:
	default:
		t.Fatal("Exit must broadcast TerminationSignaler")
	}

	_, _, _, err := p.Table.Get(slot, rights.None)
	assert.Equal(t, errno.BadF, err)
}
