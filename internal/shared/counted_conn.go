package shared

import (
	"net"
	"sync/atomic"
)

// Traffic aggregates the byte counters of every echo connection.
type Traffic struct {
	BytesIn  atomic.Uint64
	BytesOut atomic.Uint64
}

// CountedConn 是一个 net.Conn 的包装器，用于原子地统计收到和回写的字节数。
type CountedConn struct {
	net.Conn
	in  *atomic.Uint64
	out *atomic.Uint64
}

// NewCountedConn wraps conn so reads add to in and writes add to out.
func NewCountedConn(conn net.Conn, in, out *atomic.Uint64) *CountedConn {
	return &CountedConn{
		Conn: conn,
		in:   in,
		out:  out,
	}
}

// Read 从底层连接读取数据，并增加接收计数。
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.in.Add(uint64(n))
	}
	return n, err
}

// Write 将数据写入底层连接，并增加回写计数。
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.out.Add(uint64(n))
	}
	return n, err
}
