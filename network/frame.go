package network

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameKind discriminates payload frames from transport-level control
// frames.
type frameKind byte

const (
	frameKindData frameKind = 1
	frameKindPing frameKind = 2
)

// frameHeaderSize is one kind byte plus a 4-byte big-endian length.
const frameHeaderSize = 5

// MaxFrameSize bounds a single frame payload. Oversized frames indicate
// a corrupt stream or a misbehaving peer.
const MaxFrameSize = 16 * 1024 * 1024

// writeFrame writes a framed payload to w.
func writeFrame(w io.Writer, kind frameKind, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	header := make([]byte, frameHeaderSize)
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// readFrame reads the next framed payload from r.
func readFrame(r io.Reader) (frameKind, []byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	kind := frameKind(header[0])
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxFrameSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	if length == 0 {
		return kind, nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return kind, payload, nil
}
