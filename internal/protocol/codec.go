package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest frame accepted from the host. Browsers enforce
// the same limit on host-to-extension messages.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when a frame header announces more than MaxFrameSize bytes.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// Encoder writes native messaging frames: a uint32 length in native byte order
// followed by the JSON body.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v and writes it as a single frame.
func (e *Encoder) Encode(v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	frame := make([]byte, 4+len(buf))
	binary.NativeEndian.PutUint32(frame, uint32(len(buf)))
	copy(frame[4:], buf)
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads native messaging frames.
type Decoder struct {
	r   io.Reader
	max uint32
}

// NewDecoder returns a Decoder reading from r with the default size limit.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, max: MaxFrameSize}
}

// Decode reads one frame into v. io.EOF is returned unwrapped when the stream
// ends cleanly between frames. A JSON error leaves the stream positioned at the
// next frame, so callers may keep decoding.
func (d *Decoder) Decode(v any) error {
	var header [4]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return err
	}
	size := binary.NativeEndian.Uint32(header[:])
	if size > d.max {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return &SyntaxError{Err: err}
	}
	return nil
}

// SyntaxError reports a frame whose body was not valid JSON for the target.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return "decode frame: " + e.Err.Error()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
