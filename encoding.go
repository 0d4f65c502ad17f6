package shp2geojson

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// ByteWidthClassifier estimates how many bytes of the original dBase row a decoded
// character occupied. The dBase decoder uses it to find fixed-width field boundaries in
// text that has already been decoded.
type ByteWidthClassifier interface {
	ByteWidth(r rune) int
}

// ByteWidthFunc adapts a function to ByteWidthClassifier.
type ByteWidthFunc func(r rune) int

// ByteWidth calls f(r).
func (f ByteWidthFunc) ByteWidth(r rune) int { return f(r) }

// FixedWidth counts ASCII characters as one byte and every other character as the
// fixed number of bytes it holds.
type FixedWidth int

// ByteWidth implements ByteWidthClassifier.
func (w FixedWidth) ByteWidth(r rune) int {
	if r < utf8.RuneSelf {
		return 1
	}
	return int(w)
}

// DefaultByteWidth is used for encodings without a registered classifier.
const DefaultByteWidth FixedWidth = 3

var (
	byteWidthMu sync.RWMutex
	byteWidths  = map[string]ByteWidthClassifier{
		"big5":       FixedWidth(2),
		"iso-8859-1": FixedWidth(1),
	}
)

// RegisterByteWidth sets the classifier used for an encoding name. Aliases of the same
// encoding share one classifier.
func RegisterByteWidth(name string, c ByteWidthClassifier) {
	key := canonicalEncoding(name)
	byteWidthMu.Lock()
	defer byteWidthMu.Unlock()
	byteWidths[key] = c
}

// ByteWidthFor returns the classifier registered for name or any of its aliases, or
// DefaultByteWidth.
func ByteWidthFor(name string) ByteWidthClassifier {
	key := canonicalEncoding(name)
	byteWidthMu.RLock()
	defer byteWidthMu.RUnlock()
	if c, ok := byteWidths[key]; ok {
		return c
	}
	return DefaultByteWidth
}

// canonicalEncoding maps an encoding label to the canonical WHATWG name, so that
// "csbig5" and "big5-hkscs" resolve to "big5". ISO-8859-1 keeps its own name because
// htmlindex folds it into windows-1252.
func canonicalEncoding(name string) string {
	name = normalizeEncoding(name)
	switch name {
	case "iso-8859-1", "latin1":
		return "iso-8859-1"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return name
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return name
	}
	return canonical
}

func normalizeEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultEncoding
	}
	return name
}

// LookupEncoding resolves an encoding label such as "utf-8", "big5" or "iso-8859-1".
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = normalizeEncoding(name)
	switch name {
	case "iso-8859-1", "latin1":
		// htmlindex maps these labels to windows-1252.
		return charmap.ISO8859_1, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(ErrUnsupportedEncoding, "%q", name)
	}
	return enc, nil
}

// DecodeText decodes raw bytes with the named encoding.
func DecodeText(raw []byte, name string) (string, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", eris.Wrapf(err, "decode %s text", normalizeEncoding(name))
	}
	return string(out), nil
}
