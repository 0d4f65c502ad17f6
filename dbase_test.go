package shp2geojson

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/traditionalchinese"
)

var cityFields = []testField{
	{"NAME", 'C', 10},
	{"POP", 'N', 8},
	{"CAPITAL", 'L', 1},
}

func TestDecodeDbase_Header(t *testing.T) {
	data := buildDbf(t, nil, cityFields, [][]string{
		{"Taipei", "2646204", "T"},
		{"Kaohsiung", "2773533", "F"},
	})

	dbf, err := DecodeDbaseBytes(data, "", nil)
	require.NoError(t, err)

	h := dbf.Header
	assert.Equal(t, uint8(0x03), h.Version)
	assert.Equal(t, Date{Year: 2024, Month: 1, Day: 15}, h.LastUpdate)
	assert.Equal(t, 2, h.NumberOfRecords)
	assert.Equal(t, 32+32*3+1, h.HeaderByteLength)
	assert.Equal(t, 1+10+8+1, h.RecordByteLength)
	require.Len(t, h.Fields, 3)

	for i, f := range cityFields {
		assert.Equal(t, f.name, h.Fields[i].Name)
		assert.Equal(t, f.typ, h.Fields[i].Type)
		assert.Equal(t, f.length, h.Fields[i].Length)
	}
	assert.Equal(t, "utf-8", dbf.Encoding)
}

func TestDecodeDbase_Records(t *testing.T) {
	data := buildDbf(t, nil, cityFields, [][]string{
		{"Taipei", "2646204", "T"},
		{"Kaohsiung", "2773533", "F"},
	})

	dbf, err := DecodeDbaseBytes(data, "utf-8", nil)
	require.NoError(t, err)
	require.Len(t, dbf.Records, 2)

	assert.Equal(t, DbaseRecord{"NAME": "Taipei", "POP": "2646204", "CAPITAL": "T"}, dbf.Records[0])
	assert.Equal(t, DbaseRecord{"NAME": "Kaohsiung", "POP": "2773533", "CAPITAL": "F"}, dbf.Records[1])
}

func TestDecodeDbase_TypedFields(t *testing.T) {
	data := buildDbf(t, nil, cityFields, [][]string{
		{"Taipei", "2646204", "T"},
		{"Unknown", "", "?"},
	})

	dbf, err := DecodeDbaseBytes(data, "utf-8", &Options{TypedFields: true})
	require.NoError(t, err)
	require.Len(t, dbf.Records, 2)

	assert.Equal(t, 2646204.0, dbf.Records[0]["POP"])
	assert.Equal(t, true, dbf.Records[0]["CAPITAL"])
	assert.Nil(t, dbf.Records[1]["POP"])
	assert.Nil(t, dbf.Records[1]["CAPITAL"])
	assert.Equal(t, "Unknown", dbf.Records[1]["NAME"])
}

func TestDecodeDbase_ScientificNotation(t *testing.T) {
	fields := []testField{{"AREA", 'N', 19}}
	data := buildDbf(t, nil, fields, [][]string{
		{"1.21500000000e+002"},
		{"-3.00000000000e-001"},
		{"12.5"},
	})

	dbf, err := DecodeDbaseBytes(data, "utf-8", nil)
	require.NoError(t, err)

	assert.Equal(t, 121.5, dbf.Records[0]["AREA"])
	assert.Equal(t, -0.3, dbf.Records[1]["AREA"])
	assert.Equal(t, "12.5", dbf.Records[2]["AREA"])
}

func TestDecodeDbase_Encodings(t *testing.T) {
	fields := []testField{{"NAME", 'C', 10}, {"CODE", 'C', 3}}

	tests := []struct {
		name     string
		encoding string
		value    string
		write    func(t *testing.T, rows [][]string) []byte
	}{
		{
			name:     "utf-8",
			encoding: "utf-8",
			value:    "台北市",
			write: func(t *testing.T, rows [][]string) []byte {
				return buildDbf(t, nil, fields, rows)
			},
		},
		{
			name:     "big5",
			encoding: "big5",
			value:    "臺北市政府",
			write: func(t *testing.T, rows [][]string) []byte {
				return buildDbf(t, traditionalchinese.Big5, fields, rows)
			},
		},
		{
			name:     "csbig5 alias",
			encoding: "csbig5",
			value:    "臺北市政府",
			write: func(t *testing.T, rows [][]string) []byte {
				return buildDbf(t, traditionalchinese.Big5, fields, rows)
			},
		},
		{
			name:     "big5-hkscs alias",
			encoding: "Big5-HKSCS",
			value:    "高雄",
			write: func(t *testing.T, rows [][]string) []byte {
				return buildDbf(t, traditionalchinese.Big5, fields, rows)
			},
		},
		{
			name:     "iso-8859-1",
			encoding: "ISO-8859-1",
			value:    "Zürich",
			write: func(t *testing.T, rows [][]string) []byte {
				return buildDbf(t, charmap.ISO8859_1, fields, rows)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.write(t, [][]string{{tt.value, "A1"}, {"plain", "B2"}})

			dbf, err := DecodeDbaseBytes(data, tt.encoding, nil)
			require.NoError(t, err)
			require.Len(t, dbf.Records, 2)

			assert.Equal(t, tt.value, dbf.Records[0]["NAME"])
			assert.Equal(t, "A1", dbf.Records[0]["CODE"])
			assert.Equal(t, "plain", dbf.Records[1]["NAME"])
			assert.Equal(t, "B2", dbf.Records[1]["CODE"])
		})
	}
}

// Two-byte UTF-8 characters are counted as three bytes, so the fields after them shift.
func TestDecodeDbase_UTF8TwoByteDrift(t *testing.T) {
	fields := []testField{{"NAME", 'C', 10}, {"CODE", 'C', 3}}
	data := buildDbf(t, nil, fields, [][]string{
		{"Genève", "GE"},
		{"Zürich", "ZH"},
		{"plain", "P1"},
	})

	dbf, err := DecodeDbaseBytes(data, "utf-8", nil)
	require.NoError(t, err)

	want := []DbaseRecord{
		{"NAME": "Genève", "CODE": "GE"},
		{"NAME": "Zürich", "CODE": "Z"},
		{"NAME": "plain", "CODE": "P"},
	}
	assert.Equal(t, want, dbf.Records)
}

func TestSliceRow_Big5Budget(t *testing.T) {
	fields := []FieldDescriptor{{Name: "NAME", Type: 'C', Length: 4}, {Name: "ID", Type: 'C', Length: 2}}
	rows := []rune(" 中ab42 next")

	values, next, consumed, err := sliceRow(rows, 0, fields, ByteWidthFor("big5"))
	require.NoError(t, err)

	assert.Equal(t, []string{"中ab", "42"}, values)
	assert.Equal(t, 6, next)
	assert.Equal(t, 1+4+2, consumed)
}

func TestSliceRow_ConsumedMatchesRecordLength(t *testing.T) {
	fields := []testField{{"NAME", 'C', 12}, {"NOTE", 'C', 6}}
	data := buildDbf(t, nil, fields, [][]string{
		{"高雄市", "ok"},
		{"Tainan", "東區"},
	})

	dbf, err := DecodeDbaseBytes(data, "utf-8", nil)
	require.NoError(t, err)

	text, err := DecodeText(data, "utf-8")
	require.NoError(t, err)
	rows, err := rowText(data[:dbf.Header.HeaderByteLength], text)
	require.NoError(t, err)

	pos := 0
	for i := 0; i < dbf.Header.NumberOfRecords; i++ {
		_, next, consumed, err := sliceRow(rows, pos, dbf.Header.Fields, ByteWidthFor("utf-8"))
		require.NoError(t, err)
		assert.Equal(t, dbf.Header.RecordByteLength, consumed, "row %d", i)
		pos = next
	}
}

func TestDecodeDbase_CarriageReturnInHeader(t *testing.T) {
	// 13 records puts a 0x0D byte into the record count.
	rows := make([][]string, 13)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row%d", i)}
	}
	data := buildDbf(t, nil, []testField{{"NAME", 'C', 6}}, rows)
	require.Equal(t, byte(dbfTerminator), data[4])

	dbf, err := DecodeDbaseBytes(data, "utf-8", nil)
	require.NoError(t, err)
	require.Len(t, dbf.Records, 13)
	assert.Equal(t, "row0", dbf.Records[0]["NAME"])
	assert.Equal(t, "row12", dbf.Records[12]["NAME"])
}

func TestDecodeDbase_HeaderPadding(t *testing.T) {
	fields := []testField{{"NAME", 'C', 6}}
	data := buildDbf(t, nil, fields, [][]string{{"alpha"}, {"beta"}})

	end := dbfPrologueLength + dbfFieldLength + 1
	padded := append(append(append([]byte(nil), data[:end]...), 0, 0), data[end:]...)
	binary.LittleEndian.PutUint16(padded[8:10], uint16(end+2))

	dbf, err := DecodeDbaseBytes(padded, "utf-8", nil)
	require.NoError(t, err)
	require.Len(t, dbf.Records, 2)
	assert.Equal(t, "alpha", dbf.Records[0]["NAME"])
	assert.Equal(t, "beta", dbf.Records[1]["NAME"])
}

func TestDecodeDbase_PrecomputedText(t *testing.T) {
	data := buildDbf(t, traditionalchinese.Big5, []testField{{"NAME", 'C', 4}}, [][]string{{"中ab"}})

	text, err := DecodeText(data, "big5")
	require.NoError(t, err)

	dbf, err := DecodeDbase(data, text, "big5", nil)
	require.NoError(t, err)
	assert.Equal(t, "中ab", dbf.Records[0]["NAME"])
}

func TestDecodeDbase_Errors(t *testing.T) {
	valid := buildDbf(t, nil, cityFields, [][]string{
		{"Taipei", "2646204", "T"},
		{"Kaohsiung", "2773533", "F"},
	})

	noTerminator := append([]byte(nil), valid[:dbfPrologueLength+dbfFieldLength]...)

	tests := []struct {
		name     string
		data     []byte
		encoding string
		want     error
	}{
		{"unsupported encoding", valid, "klingon", ErrUnsupportedEncoding},
		{"short prologue", valid[:10], "utf-8", ErrTruncatedBuffer},
		{"missing terminator", noTerminator, "utf-8", ErrTruncatedBuffer},
		{"partial field slot", valid[:dbfPrologueLength+10], "utf-8", ErrTruncatedBuffer},
		{"truncated rows", valid[:len(valid)-12], "utf-8", ErrTruncatedBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbf, err := DecodeDbaseBytes(tt.data, tt.encoding, nil)
			require.Error(t, err)
			assert.Nil(t, dbf)
			assert.True(t, eris.Is(err, tt.want), "got %v", err)
		})
	}
}
