package control

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/NuxiNL/corekernel/pkg/errno"
	"github.com/NuxiNL/corekernel/pkg/reverse"
	"github.com/NuxiNL/corekernel/pkg/rights"
)

// dispatch parses one command line and returns the reply body plus any
// capabilities to deliver alongside it on the next SockRecv. Must be
// called with c.mu held: PSEUDOPAIR/COPY/RAWSOCK construct fresh
// capabilities using this instance's own collaborators.
func (c *ControlSocket) dispatch(line string) ([]byte, []pendingFD) {
	line = strings.TrimRight(line, "\x00")
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "LIST":
		return c.doList()
	case "PSEUDOPAIR":
		return c.doPseudoPair(arg)
	case "COPY":
		return c.doCopy()
	case "MAC":
		return c.doMAC(arg)
	case "HWTYPE":
		return c.doHWType(arg)
	case "RAWSOCK":
		return c.doRawSock(arg)
	default:
		return []byte("ERROR"), nil
	}
}

func (c *ControlSocket) doList() ([]byte, []pendingFD) {
	var b strings.Builder
	for _, name := range c.store.List() {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func (c *ControlSocket) doPseudoPair(arg string) ([]byte, []pendingFD) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n > 255 {
		return []byte("ERROR"), nil
	}

	rev, pseudo, ferr := reverse.NewPair(reverse.Filetype(n), c.pairCfg, c.log)
	if ferr != errno.Success {
		// MakePair only fails if either side is already connected, which
		// cannot happen for sockets freshly constructed right above; if
		// it ever does, this is a violated internal invariant, not a
		// caller mistake, so it gets the wrapped-error treatment rather
		// than an ordinary errno.
		c.log.WithError(errors.Wrapf(ferr, "pseudopair: make_pair on fresh sockets for filetype %d", n)).Error("internal invariant violated")
		return []byte("ERROR"), nil
	}
	return []byte("OK"), []pendingFD{
		{cap: rev, base: rights.All, inheriting: rights.All},
		{cap: pseudo, base: rights.All, inheriting: rights.All},
	}
}

func (c *ControlSocket) doCopy() ([]byte, []pendingFD) {
	if c.spawn == nil {
		c.log.WithError(errors.New("control socket constructed without a spawn factory")).Error("COPY invoked on an unwired instance")
		return []byte("ERROR"), nil
	}
	fresh := c.spawn()
	return []byte("OK"), []pendingFD{{cap: fresh, base: rights.All, inheriting: rights.All}}
}

func (c *ControlSocket) doMAC(arg string) ([]byte, []pendingFD) {
	if arg == "" {
		return []byte("ERROR"), nil
	}
	ifc, ok := c.store.Lookup(arg)
	if !ok {
		return []byte("NOIFACE"), nil
	}
	if len(ifc.MAC) == 0 {
		return []byte("00:00:00:00:00:00"), nil
	}
	parts := make([]string, len(ifc.MAC))
	for i, b := range ifc.MAC {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return []byte(strings.Join(parts, ":")), nil
}

func (c *ControlSocket) doHWType(arg string) ([]byte, []pendingFD) {
	if arg == "" {
		return []byte("ERROR"), nil
	}
	ifc, ok := c.store.Lookup(arg)
	if !ok {
		return []byte("NOIFACE"), nil
	}
	return []byte(ifc.HWType.String()), nil
}

func (c *ControlSocket) doRawSock(arg string) ([]byte, []pendingFD) {
	if arg == "" {
		return []byte("ERROR"), nil
	}
	if _, ok := c.store.Lookup(arg); !ok {
		return []byte("NOIFACE"), nil
	}
	return []byte("OK"), []pendingFD{{cap: newRawSocket(arg), base: rights.All, inheriting: rights.All}}
}
