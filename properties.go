package shp2geojson

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// scientificPattern matches the exponent form dBase writers use for double values,
// e.g. "1.21500000000e+002".
var scientificPattern = regexp.MustCompile(`^[-+]?\d\.\d{11}e[-+]\d{3}$`)

// parseFieldValue turns a sliced field into a property value.
// Scientific-notation text becomes float64, anything else stays a trimmed string.
// With typed set, numeric and logical fields are converted by their declared type.
func parseFieldValue(raw string, field FieldDescriptor, typed bool) interface{} {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\x00", ""))

	if scientificPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if !typed {
		return s
	}

	switch field.Type {
	case 'N', 'F':
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s

	case 'L':
		switch s {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		default:
			return nil
		}
	}

	return s
}

// toProperties converts a dBase record into feature properties.
// A missing record yields an empty property set.
func toProperties(rec DbaseRecord) geojson.Properties {
	props := make(geojson.Properties, len(rec))
	for name, value := range rec {
		props[name] = value
	}
	return props
}
