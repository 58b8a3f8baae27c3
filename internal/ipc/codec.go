package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize is the hard cap on one framed message's payload
// (spec.md §4.6, §6: "default 1 MiB").
const MaxMessageSize = 1 << 20

// ErrMessageTooLarge is returned by ReadMessage when the framed length
// prefix exceeds MaxMessageSize; the caller should close the connection.
var ErrMessageTooLarge = fmt.Errorf("ipc: message exceeds %d bytes", MaxMessageSize)

// WriteMessage frames msg as `u32 BE length || payload` and writes it to
// w. The payload is JSON — the same encoding the teacher's bridge
// request/response helpers use over its Unix sockets, here wrapped in
// the length prefix spec.md requires so reads never need to buffer an
// unbounded line.
func WriteMessage(w io.Writer, msg ControlMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ipc: marshal message: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("ipc: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r. A length prefix above
// MaxMessageSize is a protocol violation: the caller must close the
// connection rather than attempt to skip the oversized payload, since
// skipping would itself require buffering it.
func ReadMessage(r io.Reader) (ControlMessage, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return ControlMessage{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxMessageSize {
		return ControlMessage{}, ErrMessageTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return ControlMessage{}, fmt.Errorf("ipc: read payload: %w", err)
	}
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// An unrecognized or malformed payload is skipped rather than
		// treated as a framing error: the length prefix already let us
		// consume exactly its bytes, so the stream stays in sync.
		return ControlMessage{Kind: KindUnknown}, nil
	}
	return msg, nil
}
