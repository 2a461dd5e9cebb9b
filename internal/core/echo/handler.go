// Package echo implements the per-connection echo loop.
package echo

import (
	stderrors "errors"
	"io"
	"net"
	"unicode/utf8"

	"echo_nexus/internal/shared/errors"
	"echo_nexus/internal/shared/types"
)

// LogSender receives the text of every echoed message.
type LogSender interface {
	Send(text string) error
}

// Handler echoes bytes back to the peer and forwards them as log text.
type Handler struct {
	bufferSize int
}

// NewHandler returns a handler reading up to bufferSize bytes per cycle.
func NewHandler(bufferSize int) *Handler {
	if bufferSize <= 0 {
		bufferSize = types.DefaultBufferSize
	}
	return &Handler{bufferSize: bufferSize}
}

// BufferSize is the maximum payload of a single read/echo cycle.
func (h *Handler) BufferSize() int {
	return h.bufferSize
}

// Handle runs the echo loop until the peer closes the stream (nil), an I/O
// error happens (KindIO), or a payload is not valid UTF-8 (KindDecode).
// The caller owns conn and closes it afterwards.
func (h *Handler) Handle(conn net.Conn, tx LogSender) error {
	buf := make([]byte, h.bufferSize)
	remote := remoteAddr(conn)
	for {
		n, err := conn.Read(buf)
		if n == 0 {
			if err == nil || stderrors.Is(err, io.EOF) {
				return nil
			}
			return errors.NewError(errors.KindIO, "read failed").AtPrefix(remote).Base(err)
		}

		msg := buf[:n]
		if _, werr := conn.Write(msg); werr != nil {
			return errors.NewError(errors.KindIO, "write failed").AtPrefix(remote).Base(werr)
		}

		if !utf8.Valid(msg) {
			return errors.NewError(errors.KindDecode, "payload is not valid UTF-8").AtPrefix(remote)
		}
		if serr := tx.Send(string(msg)); serr != nil {
			return errors.NewError(errors.KindIO, "failed to forward log entry").AtPrefix(remote).Base(serr)
		}

		// A read may hand back data together with an error; the data has
		// been echoed, now honour the error.
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			return errors.NewError(errors.KindIO, "read failed").AtPrefix(remote).Base(err)
		}
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
