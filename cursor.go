package shp2geojson

import (
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"
)

// cursor reads fixed-width values from a byte slice and fails on any read past its end.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

// remaining returns the number of unread bytes.
func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, eris.Wrapf(ErrTruncatedBuffer, "read %d bytes at offset %d of %d", n, c.pos, len(c.data))
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// sub returns a cursor over the next n bytes and advances past them.
func (c *cursor) sub(n int) (*cursor, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return newCursor(b), nil
}

func (c *cursor) int32BE() (int32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (c *cursor) int32LE() (int32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (c *cursor) float64LE() (float64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// float64sLE reads n little-endian doubles.
func (c *cursor) float64sLE(n int) ([]float64, error) {
	if n < 0 || n > c.remaining()/8 {
		return nil, eris.Wrapf(ErrTruncatedBuffer, "read %d doubles at offset %d of %d", n, c.pos, len(c.data))
	}
	out := make([]float64, n)
	for i := range out {
		out[i], _ = c.float64LE()
	}
	return out, nil
}

// int32sLE reads n little-endian int32 values.
func (c *cursor) int32sLE(n int) ([]int32, error) {
	if n < 0 || n > c.remaining()/4 {
		return nil, eris.Wrapf(ErrTruncatedBuffer, "read %d ints at offset %d of %d", n, c.pos, len(c.data))
	}
	out := make([]int32, n)
	for i := range out {
		out[i], _ = c.int32LE()
	}
	return out, nil
}

func leFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
