package shp2geojson

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
)

// =============================================================================
// Shapefile fixtures
// =============================================================================

func putFloats(buf *bytes.Buffer, v ...float64) {
	for _, f := range v {
		_ = binary.Write(buf, binary.LittleEndian, f)
	}
}

func putBox(buf *bytes.Buffer, b Box) {
	putFloats(buf, b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// pointContent builds the content of a Point record.
func pointContent(x, y float64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int32(ShapePoint))
	putFloats(&buf, x, y)
	return buf.Bytes()
}

// polyContent builds the content of a PolyLine or Polygon record.
func polyContent(st ShapeType, parts []int32, xy []float64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int32(st))
	putBox(&buf, boxOf(xy))
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(parts)))
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(xy)/2))
	for _, p := range parts {
		_ = binary.Write(&buf, binary.LittleEndian, p)
	}
	putFloats(&buf, xy...)
	return buf.Bytes()
}

// multiPointContent builds the content of a MultiPoint record.
func multiPointContent(xy []float64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int32(ShapeMultiPoint))
	putBox(&buf, boxOf(xy))
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(xy)/2))
	putFloats(&buf, xy...)
	return buf.Bytes()
}

// pointZContent builds the content of a PointZ record.
func pointZContent(x, y, z, m float64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int32(ShapePointZ))
	putFloats(&buf, x, y, z, m)
	return buf.Bytes()
}

func nullContent() []byte {
	return []byte{0, 0, 0, 0}
}

func boxOf(xy []float64) Box {
	if len(xy) < 2 {
		return Box{}
	}
	b := Box{MinX: xy[0], MinY: xy[1], MaxX: xy[0], MaxY: xy[1]}
	for i := 2; i+1 < len(xy); i += 2 {
		if xy[i] < b.MinX {
			b.MinX = xy[i]
		}
		if xy[i] > b.MaxX {
			b.MaxX = xy[i]
		}
		if xy[i+1] < b.MinY {
			b.MinY = xy[i+1]
		}
		if xy[i+1] > b.MaxY {
			b.MaxY = xy[i+1]
		}
	}
	return b
}

// buildShp assembles a complete .shp buffer from record contents.
func buildShp(st ShapeType, box Box, contents ...[]byte) []byte {
	var body bytes.Buffer
	for i, c := range contents {
		_ = binary.Write(&body, binary.BigEndian, int32(i+1))
		_ = binary.Write(&body, binary.BigEndian, int32(len(c)/2))
		body.Write(c)
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, FileCode)
	buf.Write(make([]byte, 20))
	_ = binary.Write(&buf, binary.BigEndian, int32((shpHeaderLength+body.Len())/2))
	_ = binary.Write(&buf, binary.LittleEndian, int32(1000))
	_ = binary.Write(&buf, binary.LittleEndian, int32(st))
	putBox(&buf, box)
	putFloats(&buf, 0, 0, 0, 0)
	buf.Write(body.Bytes())
	return buf.Bytes()
}

// =============================================================================
// dBase fixtures
// =============================================================================

type testField struct {
	name   string
	typ    byte
	length int
}

// buildDbf assembles a .dbf buffer. Values are encoded with enc (nil for raw UTF-8) and
// padded with spaces to the field width in bytes.
func buildDbf(t testing.TB, enc encoding.Encoding, fields []testField, rows [][]string) []byte {
	t.Helper()

	recordLen := 1
	for _, f := range fields {
		recordLen += f.length
	}
	headerLen := dbfPrologueLength + dbfFieldLength*len(fields) + 1

	var buf bytes.Buffer
	buf.Write([]byte{0x03, 124, 1, 15})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(rows)))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(headerLen))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(recordLen))
	buf.Write(make([]byte, 20))

	for _, f := range fields {
		slot := make([]byte, dbfFieldLength)
		copy(slot[:10], f.name)
		slot[11] = f.typ
		slot[16] = byte(f.length)
		buf.Write(slot)
	}
	buf.WriteByte(dbfTerminator)

	for _, row := range rows {
		buf.WriteByte(' ')
		for j, f := range fields {
			v := []byte(row[j])
			if enc != nil {
				var err error
				v, err = enc.NewEncoder().Bytes(v)
				require.NoError(t, err)
			}
			require.LessOrEqual(t, len(v), f.length, "value %q too wide for %s", row[j], f.name)
			buf.Write(v)
			buf.WriteString(strings.Repeat(" ", f.length-len(v)))
		}
	}
	buf.WriteByte(0x1A)

	return buf.Bytes()
}
