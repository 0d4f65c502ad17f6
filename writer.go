package shp2geojson

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// WriteOptions configures GeoJSON writing.
type WriteOptions struct {
	Indent string // Indentation per level; empty writes compact output
}

// Write writes a FeatureCollection as GeoJSON. Compact output is encoded one feature at a
// time, so large collections are never held as a single JSON document in memory.
func Write(w io.Writer, fc *geojson.FeatureCollection, opts *WriteOptions) error {
	if fc == nil {
		return eris.New("shp2geojson: nil feature collection")
	}
	if opts == nil {
		opts = &WriteOptions{}
	}

	if opts.Indent != "" {
		data, err := json.MarshalIndent(fc, "", opts.Indent)
		if err != nil {
			return eris.Wrap(err, "shp2geojson: encode collection")
		}
		return writeAll(w, append(data, '\n'))
	}

	bw := bufio.NewWriter(w)
	gen := &featureGenerator{features: fc.Features}

	if _, err := bw.WriteString(`{"type":"FeatureCollection"`); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}
	if len(fc.BBox) > 0 {
		if err := writeMember(bw, "bbox", fc.BBox); err != nil {
			return err
		}
	}
	if err := writeExtraMembers(bw, fc.ExtraMembers); err != nil {
		return err
	}
	if _, err := bw.WriteString(`,"features":[`); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}

	for i := 0; ; i++ {
		data, err := gen.Generate()
		if err != nil {
			return err
		}
		if data == nil {
			break
		}
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return eris.Wrap(err, "shp2geojson: write feature")
			}
		}
		if _, err := bw.Write(data); err != nil {
			return eris.Wrap(err, "shp2geojson: write feature")
		}
	}

	if _, err := bw.WriteString("]}\n"); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "shp2geojson: flush")
	}
	return nil
}

// WriteFeature writes a single feature as GeoJSON.
func WriteFeature(w io.Writer, f *geojson.Feature, opts *WriteOptions) error {
	if f == nil {
		return eris.New("shp2geojson: nil feature")
	}
	if opts == nil {
		opts = &WriteOptions{}
	}

	var (
		data []byte
		err  error
	)
	if opts.Indent != "" {
		data, err = json.MarshalIndent(f, "", opts.Indent)
	} else {
		data, err = f.MarshalJSON()
	}
	if err != nil {
		return eris.Wrap(err, "shp2geojson: encode feature")
	}
	return writeAll(w, append(data, '\n'))
}

// featureGenerator encodes the features of a collection one at a time.
type featureGenerator struct {
	features []*geojson.Feature
	index    int
}

// Generate returns the next encoded feature, or nil when all features are done.
func (g *featureGenerator) Generate() ([]byte, error) {
	for g.index < len(g.features) {
		f := g.features[g.index]
		g.index++
		if f == nil {
			continue
		}

		data, err := f.MarshalJSON()
		if err != nil {
			return nil, eris.Wrapf(err, "shp2geojson: encode feature %d", g.index-1)
		}
		return data, nil
	}
	return nil, nil
}

func writeMember(bw *bufio.Writer, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "shp2geojson: encode %s", name)
	}
	key, _ := json.Marshal(name)

	if err := bw.WriteByte(','); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}
	if _, err := bw.Write(key); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}
	if err := bw.WriteByte(':'); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}
	if _, err := bw.Write(data); err != nil {
		return eris.Wrap(err, "shp2geojson: write collection")
	}
	return nil
}

// writeExtraMembers writes foreign members in key order. Members that would replace the
// collection's own keys are skipped.
func writeExtraMembers(bw *bufio.Writer, extra geojson.Properties) error {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		switch k {
		case "type", "bbox", "features":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := writeMember(bw, k, extra[k]); err != nil {
			return err
		}
	}
	return nil
}

func writeAll(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "shp2geojson: write")
	}
	return nil
}
