package ifstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NuxiNL/corekernel/pkg/ifstore"
)

func TestStaticListPreservesOrder(t *testing.T) {
	s := ifstore.NewStatic(
		ifstore.Interface{Name: "lo", HWType: ifstore.Loopback},
		ifstore.Interface{Name: "eth0", HWType: ifstore.Ethernet, MAC: []byte{0, 1, 2, 3, 4, 5}},
	)
	assert.Equal(t, []string{"lo", "eth0"}, s.List())
}

func TestStaticLookupMissing(t *testing.T) {
	s := ifstore.NewStatic(ifstore.Interface{Name: "lo"})
	_, ok := s.Lookup("wlan0")
	assert.False(t, ok)
}

func TestStaticLookupFound(t *testing.T) {
	s := ifstore.NewStatic(ifstore.Interface{Name: "eth0", HWType: ifstore.Ethernet})
	ifc, ok := s.Lookup("eth0")
	assert.True(t, ok)
	assert.Equal(t, ifstore.Ethernet, ifc.HWType)
}

func TestHWTypeString(t *testing.T) {
	assert.Equal(t, "LOOPBACK", ifstore.Loopback.String())
	assert.Equal(t, "ETHERNET", ifstore.Ethernet.String())
	assert.Equal(t, "UNKNOWN", ifstore.Unknown.String())
}
