// Framing shared by every connection type: each message is a 4 byte
// big-endian length header followed by that many bytes of JSON.
package packets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderSize = 0x04
	// MaxMessageSize is the largest body accepted in either direction.
	MaxMessageSize = 64 * 1024
)

var (
	// ErrEmptyFrame and ErrFrameTooLarge are framing errors; the stream is no
	// longer trustworthy once either is returned and the connection should be dropped.
	ErrEmptyFrame    = errors.New("frame has zero length")
	ErrFrameTooLarge = errors.New("frame exceeds maximum message size")
)

// ReadFrame blocks until a complete frame has been read from r and returns its
// body. buf is reused if it has enough capacity. io.EOF is returned as-is when
// the peer closes the connection between frames.
func ReadFrame(r io.Reader, buf []byte) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return buf, err
	}

	size := int(binary.BigEndian.Uint32(header[:]))
	switch {
	case size == 0:
		return buf, ErrEmptyFrame
	case size > MaxMessageSize:
		return buf, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	if cap(buf) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]

	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return buf, io.ErrUnexpectedEOF
		}
		return buf, err
	}
	return buf, nil
}

// EncodeFrame prepends the length header to body.
func EncodeFrame(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(body) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// WriteFrame writes body to w as a single frame.
func WriteFrame(w io.Writer, body []byte) error {
	frame, err := EncodeFrame(body)
	if err != nil {
		return err
	}

	for written := 0; written < len(frame); {
		n, err := w.Write(frame[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// FrameSize extracts the declared body length from a header. Panics if
// header is shorter than HeaderSize since that indicates a caller bug.
func FrameSize(header []byte) int {
	if len(header) < HeaderSize {
		panic(errors.New("FrameSize(): header must be at least four bytes"))
	}
	return int(binary.BigEndian.Uint32(header[:HeaderSize]))
}
