package message

import (
	"encoding/binary"
	"io"

	"github.com/drep-project/dswarm/swarmerr"
)

// maxFrameLen bounds a single frame so a corrupt or hostile peer cannot
// make the reader allocate unbounded memory from a forged length prefix.
const maxFrameLen = 16 << 20

// WriteFrames writes frames to w as a sequence of uint32-length-prefixed
// blocks, followed by a 0xFFFFFFFF sentinel length marking the end of this
// envelope (a zero length is an ordinary empty frame). Raw sockets give a byte stream, not message boundaries
// (§4.1.1), so this is the only framing the codec adds on top of
// binary.Marshal's output.
func WriteFrames(w io.Writer, frames [][]byte) error {
	var lenBuf [4]byte
	for _, f := range frames {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return swarmerr.ErrIOError
		}
		if len(f) == 0 {
			continue
		}
		if _, err := w.Write(f); err != nil {
			return swarmerr.ErrIOError
		}
	}
	binary.BigEndian.PutUint32(lenBuf[:], 0xFFFFFFFF)
	if _, err := w.Write(lenBuf[:]); err != nil {
		return swarmerr.ErrIOError
	}
	return nil
}

// ReadFrames reads frames written by WriteFrames: zero or more
// length-prefixed blocks terminated by the 0xFFFFFFFF sentinel length.
func ReadFrames(r io.Reader) ([][]byte, error) {
	var frames [][]byte
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, swarmerr.ErrIOError
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0xFFFFFFFF {
			return frames, nil
		}
		if n > maxFrameLen {
			return nil, swarmerr.ErrInvalidMessage
		}
		if n == 0 {
			frames = append(frames, []byte{})
			continue
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, swarmerr.ErrIOError
		}
		frames = append(frames, buf)
	}
}
