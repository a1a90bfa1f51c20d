package memconn

import "net"

// addr names a shared memory region by the path of its backing file.
type addr string

var _ net.Addr = addr("")

func (a addr) Network() string { return "memconn" }
func (a addr) String() string  { return string(a) }
