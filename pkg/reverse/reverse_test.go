package reverse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NuxiNL/corekernel/pkg/captable"
	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/reverse"
)

func TestNewPairJoinsReverseAndPseudo(t *testing.T) {
	rev, pseudo, err := reverse.NewPair(4, nil, nil)
	require.Equal(t, errno.Success, err)

	assert.Equal(t, captable.KindStreamSocket, rev.Kind())
	assert.Equal(t, captable.KindStreamSocket, pseudo.Kind())
	assert.Equal(t, reverse.Filetype(4), pseudo.Filetype())

	n, err := rev.Write([]byte("ping"))
	require.Equal(t, errno.Success, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 16)
	got, err := pseudo.Read(0, buf)
	require.Equal(t, errno.Success, err)
	assert.Equal(t, "ping", string(buf[:got]))
}
