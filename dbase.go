package shp2geojson

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	dbfPrologueLength = 32
	dbfFieldLength    = 32
	dbfTerminator     = 0x0D
)

// Date is the last update date stored in a dBase header.
type Date struct {
	Year, Month, Day int
}

// FieldDescriptor describes one fixed-width dBase column.
type FieldDescriptor struct {
	Name           string // Up to 10 characters, NUL padding removed
	Type           byte   // 'C', 'N', 'F', 'L', 'D', ...
	Length         int    // Width in bytes
	DecimalCount   int
	WorkAreaID     uint8
	SetFieldFlag   uint8
	IndexFieldFlag uint8
}

// DbaseHeader is the header and field schema of a .dbf file.
type DbaseHeader struct {
	Version               uint8
	LastUpdate            Date
	NumberOfRecords       int
	HeaderByteLength      int
	RecordByteLength      int
	IncompleteTransaction uint8
	Encryption            uint8
	MDX                   uint8
	LanguageDriverID      uint8
	Fields                []FieldDescriptor
}

// DbaseRecord maps field names to decoded values (string or float64).
type DbaseRecord map[string]interface{}

// Dbase is a decoded .dbf file.
type Dbase struct {
	Header   DbaseHeader
	Records  []DbaseRecord
	Encoding string
}

// DecodeDbase decodes a .dbf buffer. The header and schema come from data; the rows are
// sliced out of text, which is data decoded with the named encoding. Field boundaries are
// fixed byte counts, so the width of every decoded character is estimated with the
// ByteWidthClassifier registered for the encoding.
//
// The estimate is per encoding, not per character: in UTF-8 every non-ASCII character
// counts as three bytes, so a two-byte character such as 'ü' shifts the fields that
// follow it by one character.
func DecodeDbase(data []byte, text, encodingName string, opts *Options) (*Dbase, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	encodingName = normalizeEncoding(encodingName)
	if _, err := LookupEncoding(encodingName); err != nil {
		return nil, err
	}

	header, terminator, err := decodeDbaseHeader(data, encodingName)
	if err != nil {
		return nil, err
	}

	rows, err := rowText(data[:terminator+1], text)
	if err != nil {
		return nil, err
	}

	// Some writers pad the header past the terminator; HeaderByteLength covers the padding.
	if pad := header.HeaderByteLength - (terminator + 1); pad > 0 && pad <= len(rows) {
		rows = rows[pad:]
	}

	width := ByteWidthFor(encodingName)
	dbf := &Dbase{
		Header:   header,
		Records:  make([]DbaseRecord, 0, header.NumberOfRecords),
		Encoding: encodingName,
	}

	pos := 0
	for i := 0; i < header.NumberOfRecords; i++ {
		values, next, _, err := sliceRow(rows, pos, header.Fields, width)
		if err != nil {
			return nil, eris.Wrapf(err, "dbase row %d of %d", i+1, header.NumberOfRecords)
		}
		pos = next

		rec := make(DbaseRecord, len(header.Fields))
		for j, field := range header.Fields {
			rec[field.Name] = parseFieldValue(values[j], field, opts.TypedFields)
		}
		dbf.Records = append(dbf.Records, rec)
	}

	zap.L().Debug("shp2geojson: decoded dbase",
		zap.String("encoding", encodingName),
		zap.Int("fields", len(header.Fields)),
		zap.Int("records", len(dbf.Records)),
	)

	return dbf, nil
}

// DecodeDbaseBytes decodes the row text itself before calling DecodeDbase.
func DecodeDbaseBytes(data []byte, encodingName string, opts *Options) (*Dbase, error) {
	text, err := DecodeText(data, encodingName)
	if err != nil {
		return nil, err
	}
	return DecodeDbase(data, text, encodingName, opts)
}

// decodeDbaseHeader parses the prologue and field slots. It returns the offset of the
// header terminator byte.
func decodeDbaseHeader(data []byte, encodingName string) (DbaseHeader, int, error) {
	var h DbaseHeader

	if len(data) < dbfPrologueLength+1 {
		return h, 0, eris.Wrapf(ErrTruncatedBuffer, "dbase header: %d bytes", len(data))
	}

	h.Version = data[0]
	h.LastUpdate = Date{
		Year:  int(data[1]) + 1900,
		Month: int(data[2]),
		Day:   int(data[3]),
	}
	h.NumberOfRecords = int(int32(binary.LittleEndian.Uint32(data[4:8])))
	h.HeaderByteLength = int(binary.LittleEndian.Uint16(data[8:10]))
	h.RecordByteLength = int(binary.LittleEndian.Uint16(data[10:12]))
	h.IncompleteTransaction = data[14]
	h.Encryption = data[15]
	h.MDX = data[28]
	h.LanguageDriverID = data[29]

	if h.NumberOfRecords < 0 {
		return h, 0, eris.Wrapf(ErrMalformedRecord, "dbase header: %d records", h.NumberOfRecords)
	}

	idx := dbfPrologueLength
	for {
		if idx >= len(data) {
			return h, 0, eris.Wrapf(ErrTruncatedBuffer, "dbase header: no terminator after %d fields", len(h.Fields))
		}
		if data[idx] == dbfTerminator {
			break
		}
		if idx+dbfFieldLength > len(data) {
			return h, 0, eris.Wrapf(ErrTruncatedBuffer, "dbase field %d", len(h.Fields)+1)
		}

		slot := data[idx : idx+dbfFieldLength]
		h.Fields = append(h.Fields, FieldDescriptor{
			Name:           fieldName(slot[:10], encodingName),
			Type:           slot[11],
			Length:         int(slot[16]),
			DecimalCount:   int(slot[17]),
			WorkAreaID:     slot[20],
			SetFieldFlag:   slot[21],
			IndexFieldFlag: slot[31],
		})
		idx += dbfFieldLength
	}

	return h, idx, nil
}

func fieldName(raw []byte, encodingName string) string {
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	name, err := DecodeText(raw, encodingName)
	if err != nil {
		name = string(raw)
	}
	return strings.TrimSpace(name)
}

// rowText returns the decoded characters that follow the header terminator. The header
// may contain 0x0D bytes of its own (inside binary counts), so as many carriage returns
// are skipped in text as the raw header holds.
func rowText(header []byte, text string) ([]rune, error) {
	skip := bytes.Count(header, []byte{dbfTerminator})
	rest := text
	for i := 0; i < skip; i++ {
		cut := strings.IndexByte(rest, '\r')
		if cut < 0 {
			return nil, eris.Wrap(ErrTruncatedBuffer, "dbase text ends inside the header")
		}
		rest = rest[cut+1:]
	}
	return []rune(rest), nil
}

// sliceRow cuts one row out of rows starting at pos. The leading deletion marker is
// skipped, then each field consumes characters until its byte budget is spent.
// It returns the raw field texts, the position of the next row and the number of
// bytes the row was reconstructed to.
func sliceRow(rows []rune, pos int, fields []FieldDescriptor, width ByteWidthClassifier) ([]string, int, int, error) {
	if pos >= len(rows) {
		return nil, pos, 0, eris.Wrap(ErrTruncatedBuffer, "missing deletion marker")
	}
	consumed := width.ByteWidth(rows[pos])
	pos++

	values := make([]string, len(fields))
	for j, field := range fields {
		start := pos
		count := 0
		for count < field.Length {
			if pos >= len(rows) {
				return nil, pos, consumed, eris.Wrapf(ErrTruncatedBuffer, "field %q", field.Name)
			}
			count += width.ByteWidth(rows[pos])
			pos++
		}
		values[j] = string(rows[start:pos])
		consumed += count
	}

	return values, pos, consumed, nil
}
