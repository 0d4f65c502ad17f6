package shp2geojson

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb/geojson"
)

func TestParseFieldValue(t *testing.T) {
	num := FieldDescriptor{Name: "N", Type: 'N', Length: 10}
	float := FieldDescriptor{Name: "F", Type: 'F', Length: 10}
	logical := FieldDescriptor{Name: "L", Type: 'L', Length: 1}
	char := FieldDescriptor{Name: "C", Type: 'C', Length: 10}

	tests := []struct {
		name     string
		raw      string
		field    FieldDescriptor
		typed    bool
		expected interface{}
	}{
		{"trimmed string", "  abc  ", char, false, "abc"},
		{"nul padding", "ab\x00\x00", char, false, "ab"},
		{"scientific", "1.00000000000e+000", char, false, 1.0},
		{"scientific negative exponent", "2.50000000000e-003", char, false, 0.0025},
		{"scientific signed", "-1.21500000000e+002", num, false, -121.5},
		{"too few digits", "1.5e+000", char, false, "1.5e+000"},
		{"untyped number", "  42", num, false, "42"},
		{"typed number", "  42", num, true, 42.0},
		{"typed float", "3.25", float, true, 3.25},
		{"typed empty number", "   ", num, true, nil},
		{"typed bad number", "4x2", num, true, "4x2"},
		{"typed true", "Y", logical, true, true},
		{"typed false", "f", logical, true, false},
		{"typed unknown logical", "?", logical, true, nil},
		{"typed string", " text ", char, true, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseFieldValue(tt.raw, tt.field, tt.typed)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %#v, got %#v", tt.expected, result)
			}
		})
	}
}

func TestToProperties(t *testing.T) {
	rec := DbaseRecord{"name": "Taipei", "pop": 2646204.0, "capital": true, "note": nil}

	props := toProperties(rec)
	expected := geojson.Properties{"name": "Taipei", "pop": 2646204.0, "capital": true, "note": nil}
	if !reflect.DeepEqual(props, expected) {
		t.Errorf("expected %v, got %v", expected, props)
	}

	// The properties are a copy.
	props["name"] = "changed"
	if rec["name"] != "Taipei" {
		t.Error("toProperties should not alias the record")
	}
}

func TestToProperties_Empty(t *testing.T) {
	props := toProperties(nil)
	if props == nil || len(props) != 0 {
		t.Errorf("expected empty properties, got %v", props)
	}
}
