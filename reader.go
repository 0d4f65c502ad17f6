package shp2geojson

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Encoding   string   // dBase text encoding, overridden by a .cpg file
	Projection string   // Source projection, overridden by a resolvable .prj file
	Options    *Options // Decoding options
}

// Reader provides read access to a shapefile dataset. The dataset is decoded and
// converted once when the reader is created.
type Reader struct {
	name   string
	result *Result
}

// NewReader opens a dataset from a path. The path is either a zip archive or a .shp file
// with its .dbf (and optional .prj and .cpg) next to it.
func NewReader(ctx context.Context, path string, ro *ReaderOptions) (*Reader, error) {
	var (
		a   *Archive
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, eris.Wrapf(rerr, "shp2geojson: read %s", path)
		}
		a, err = ReadArchive(data)
	case ".shp":
		a, err = readShapefileSet(path)
	default:
		return nil, eris.Errorf("shp2geojson: %s is not a .zip or .shp file", path)
	}
	if err != nil {
		return nil, err
	}

	return NewReaderFromArchive(ctx, a, ro)
}

// NewReaderFromData creates a reader from the bytes of a zip archive.
func NewReaderFromData(ctx context.Context, data []byte, ro *ReaderOptions) (*Reader, error) {
	a, err := ReadArchive(data)
	if err != nil {
		return nil, err
	}
	return NewReaderFromArchive(ctx, a, ro)
}

// NewReaderFromArchive creates a reader from archive members already in memory.
func NewReaderFromArchive(ctx context.Context, a *Archive, ro *ReaderOptions) (*Reader, error) {
	if ro == nil {
		ro = &ReaderOptions{}
	}

	res, err := Convert(ctx, a.Input(ro.Encoding, ro.Projection), ro.Options)
	if err != nil {
		return nil, eris.Wrapf(err, "convert %s", a.Name)
	}

	return &Reader{name: a.Name, result: res}, nil
}

// readShapefileSet reads a .shp file and its sibling files.
func readShapefileSet(path string) (*Archive, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))

	shp, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shp2geojson: read %s", path)
	}
	dbf, err := readSibling(base, ".dbf")
	if err != nil {
		return nil, err
	}
	if dbf == nil {
		return nil, eris.Wrap(ErrMissingFile, base+".dbf")
	}
	prj, err := readSibling(base, ".prj")
	if err != nil {
		return nil, err
	}
	cpg, err := readSibling(base, ".cpg")
	if err != nil {
		return nil, err
	}

	return &Archive{
		Name: filepath.Base(base),
		Shp:  shp,
		Dbf:  dbf,
		Prj:  strings.TrimSpace(string(prj)),
		Cpg:  strings.TrimSpace(string(cpg)),
	}, nil
}

// readSibling reads base+ext, trying the upper case extension as well.
// A missing file yields nil without error.
func readSibling(base, ext string) ([]byte, error) {
	for _, e := range []string{ext, strings.ToUpper(ext)} {
		data, err := os.ReadFile(base + e)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "shp2geojson: read %s", base+e)
		}
	}
	return nil, nil
}

// Header returns metadata about the dataset.
func (r *Reader) Header() *Header {
	if r.result == nil {
		return nil
	}
	return newHeader(r.name, r.result)
}

// Result returns the decoded files and the converted collection.
func (r *Reader) Result() *Result {
	return r.result
}

// ReadAll returns all features as a FeatureCollection.
func (r *Reader) ReadAll() (*geojson.FeatureCollection, error) {
	if r.result == nil {
		return nil, ErrReaderClosed
	}
	return r.result.Collection, nil
}

// ReadGeometries returns all geometries without properties.
func (r *Reader) ReadGeometries() ([]orb.Geometry, error) {
	fc, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	geometries := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		geometries = append(geometries, f.Geometry)
	}
	return geometries, nil
}

// Search returns the features whose bounding boxes intersect bounds.
// Bounds are in WGS84 longitude/latitude.
func (r *Reader) Search(bounds orb.Bound) (*geojson.FeatureCollection, error) {
	fc, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry != nil && f.Geometry.Bound().Intersects(bounds) {
			out.Append(f)
		}
	}
	return out, nil
}

// Close releases the decoded dataset.
func (r *Reader) Close() error {
	r.result = nil
	return nil
}
