package shp2geojson

import (
	"encoding/binary"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileCode is the magic number at the start of every .shp file.
const FileCode int32 = 0x0000270A

const (
	shpHeaderLength    = 100
	recordHeaderLength = 8
)

// ShapefileHeader is the fixed 100 byte header of a .shp file.
type ShapefileHeader struct {
	FileCode   int32     // Always FileCode
	FileLength int32     // Total file length in 16-bit words
	Version    int32     // Format version (1000)
	ShapeType  ShapeType // Declared dominant shape type
	Box        Box       // X/Y extent
	MinZ, MaxZ float64
	MinM, MaxM float64
}

// ByteLength returns the declared file length in bytes.
func (h ShapefileHeader) ByteLength() int {
	return int(h.FileLength) * 2
}

// ShapeRecord is one record of a .shp file. Records keep file order; the index of a record
// is its join key against the dBase rows.
type ShapeRecord struct {
	Number        int32    // 1-based record number as stored
	ContentLength int32    // Content length in 16-bit words
	Geometry      Geometry // Unsupported when Err is set
	Err           error    // Per-record decode failure
}

// Shapefile is a decoded .shp buffer.
type Shapefile struct {
	Header  ShapefileHeader
	Records []ShapeRecord
}

// Failed returns the number of records that could not be decoded.
func (s *Shapefile) Failed() int {
	n := 0
	for _, r := range s.Records {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// ShapeTypeError reports a record whose shape type is not supported.
type ShapeTypeError struct {
	Record int32
	Type   ShapeType
}

func (e *ShapeTypeError) Error() string {
	return fmt.Sprintf("shp2geojson: record %d: shape type not supported: %d:%s", e.Record, int32(e.Type), e.Type)
}

// Is makes ShapeTypeError match ErrUnsupportedShapeType.
func (e *ShapeTypeError) Is(target error) bool {
	return target == ErrUnsupportedShapeType
}

// DecodeShapefile decodes a complete .shp buffer.
//
// A wrong file code, a declared length beyond the buffer or a record running past the
// declared length abort the decode. Failures inside a single record are kept on that record
// and decoding continues with the next one; records are always advanced by their declared
// content length.
func DecodeShapefile(data []byte, opts *Options) (*Shapefile, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	header, err := decodeShapefileHeader(data)
	if err != nil {
		return nil, err
	}

	end := header.ByteLength()
	if end > len(data) {
		return nil, eris.Wrapf(ErrTruncatedBuffer, "declared length %d exceeds buffer of %d bytes", end, len(data))
	}

	shp := &Shapefile{Header: header}
	if end <= shpHeaderLength {
		return shp, nil
	}

	body := newCursor(data[shpHeaderLength:end])
	for body.remaining() > 0 {
		offset := shpHeaderLength + body.pos
		rec, err := decodeRecord(body, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "record at offset %d", offset)
		}
		if rec.Err != nil {
			zap.L().Debug("shp2geojson: skipping shape record",
				zap.Int32("record", rec.Number),
				zap.Int("offset", offset),
				zap.Error(rec.Err),
			)
		}
		shp.Records = append(shp.Records, rec)
	}

	if failed := shp.Failed(); failed > 0 {
		zap.L().Warn("shp2geojson: shape records not decoded",
			zap.Int("failed", failed),
			zap.Int("records", len(shp.Records)),
		)
	}

	return shp, nil
}

func decodeShapefileHeader(data []byte) (ShapefileHeader, error) {
	var h ShapefileHeader

	if len(data) < 4 {
		return h, eris.Wrapf(ErrTruncatedBuffer, "shapefile header: %d bytes", len(data))
	}
	h.FileCode = int32(binary.BigEndian.Uint32(data[0:4]))
	if h.FileCode != FileCode {
		return h, eris.Wrapf(ErrInvalidFileCode, "unknown file code: %d", h.FileCode)
	}
	if len(data) < shpHeaderLength {
		return h, eris.Wrapf(ErrTruncatedBuffer, "shapefile header: %d bytes", len(data))
	}

	h.FileLength = int32(binary.BigEndian.Uint32(data[24:28]))
	h.Version = int32(binary.LittleEndian.Uint32(data[28:32]))
	h.ShapeType = ShapeType(int32(binary.LittleEndian.Uint32(data[32:36])))
	h.Box = Box{
		MinX: leFloat64(data[36:44]),
		MinY: leFloat64(data[44:52]),
		MaxX: leFloat64(data[52:60]),
		MaxY: leFloat64(data[60:68]),
	}
	h.MinZ = leFloat64(data[68:76])
	h.MaxZ = leFloat64(data[76:84])
	h.MinM = leFloat64(data[84:92])
	h.MaxM = leFloat64(data[92:100])

	return h, nil
}

// decodeRecord reads one record header and its content. The returned error is fatal;
// payload failures are stored in ShapeRecord.Err.
func decodeRecord(c *cursor, opts *Options) (ShapeRecord, error) {
	var rec ShapeRecord

	head, err := c.sub(recordHeaderLength)
	if err != nil {
		return rec, err
	}
	rec.Number, _ = head.int32BE()
	rec.ContentLength, _ = head.int32BE()

	if rec.ContentLength < 0 {
		return rec, eris.Wrapf(ErrMalformedRecord, "record %d: negative content length %d", rec.Number, rec.ContentLength)
	}

	content, err := c.sub(int(rec.ContentLength) * 2)
	if err != nil {
		return rec, err
	}

	geom, shapeType, err := decodeGeometry(content, rec.Number, opts)
	if err != nil {
		rec.Geometry = Unsupported{Shape: shapeType}
		rec.Err = err
		return rec, nil
	}
	rec.Geometry = geom

	return rec, nil
}

func decodeGeometry(c *cursor, number int32, opts *Options) (Geometry, ShapeType, error) {
	raw, err := c.int32LE()
	if err != nil {
		return nil, ShapeNull, eris.Wrapf(err, "record %d: shape type", number)
	}
	shapeType := ShapeType(raw)

	var geom Geometry
	switch shapeType {
	case ShapeNull:
		geom = Null{}

	case ShapePoint:
		geom, err = decodePoint(c)

	case ShapePolyLine:
		var pl Polyline
		pl, err = decodePolyline(c)
		geom = pl

	case ShapePolygon:
		var pl Polyline
		pl, err = decodePolyline(c)
		geom = Polygon(pl)

	case ShapeMultiPoint:
		if !opts.MultiPoint {
			return nil, shapeType, &ShapeTypeError{Record: number, Type: shapeType}
		}
		geom, err = decodeMultiPoint(c)

	default:
		return nil, shapeType, &ShapeTypeError{Record: number, Type: shapeType}
	}

	if err != nil {
		return nil, shapeType, eris.Wrapf(err, "record %d: %s", number, shapeType)
	}
	return geom, shapeType, nil
}

func decodePoint(c *cursor) (Point, error) {
	xy, err := c.float64sLE(2)
	if err != nil {
		return Point{}, err
	}
	return Point{X: xy[0], Y: xy[1]}, nil
}

func decodeBox(c *cursor) (Box, error) {
	v, err := c.float64sLE(4)
	if err != nil {
		return Box{}, err
	}
	return Box{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

func decodePolyline(c *cursor) (Polyline, error) {
	var pl Polyline

	box, err := decodeBox(c)
	if err != nil {
		return pl, err
	}
	numParts, err := c.int32LE()
	if err != nil {
		return pl, err
	}
	numPoints, err := c.int32LE()
	if err != nil {
		return pl, err
	}
	if numParts < 0 || numPoints < 0 {
		return pl, eris.Wrapf(ErrMalformedRecord, "%d parts, %d points", numParts, numPoints)
	}

	parts, err := c.int32sLE(int(numParts))
	if err != nil {
		return pl, err
	}
	points, err := c.float64sLE(int(numPoints) * 2)
	if err != nil {
		return pl, err
	}

	parts = normalizeParts(parts, int(numPoints))
	if err := validateParts(parts, int(numPoints)); err != nil {
		return pl, eris.Wrap(ErrMalformedRecord, err.Error())
	}

	pl.Box = box
	pl.Parts = parts
	pl.Points = points
	return pl, nil
}

func decodeMultiPoint(c *cursor) (MultiPoint, error) {
	var mp MultiPoint

	box, err := decodeBox(c)
	if err != nil {
		return mp, err
	}
	numPoints, err := c.int32LE()
	if err != nil {
		return mp, err
	}
	if numPoints < 0 {
		return mp, eris.Wrapf(ErrMalformedRecord, "%d points", numPoints)
	}
	points, err := c.float64sLE(int(numPoints) * 2)
	if err != nil {
		return mp, err
	}

	mp.Box = box
	mp.Points = points
	return mp, nil
}
