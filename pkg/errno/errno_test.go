package errno

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessIsZeroValue(t *testing.T) {
	var e Errno
	require.Equal(t, Success, e)
	assert.True(t, e.Ok())
	assert.Nil(t, e.AsError())
}

func TestNonSuccessAsError(t *testing.T) {
	assert.False(t, NotConn.Ok())
	require.NotNil(t, NotConn.AsError())
	assert.Equal(t, "NOTCONN", NotConn.Error())
}

func TestUnknownErrnoStringsFallBack(t *testing.T) {
	var e Errno = 999
	assert.NotEmpty(t, e.Error())
}
