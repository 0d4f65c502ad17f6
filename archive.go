package shp2geojson

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Archive holds the members of a zipped shapefile.
type Archive struct {
	Name string // .shp member name without extension
	Shp  []byte
	Dbf  []byte
	Prj  string // Projection WKT, if present
	Cpg  string // Code page (encoding name), if present
}

// ReadArchive extracts the first .shp, .dbf, .prj and .cpg members of a zip archive.
// Member extensions are matched case-insensitively.
func ReadArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "shp2geojson: open archive")
	}

	a := &Archive{}
	var prj, cpg []byte
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}

		var dst *[]byte
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".shp":
			dst = &a.Shp
			if a.Shp == nil {
				a.Name = strings.TrimSuffix(path.Base(f.Name), path.Ext(f.Name))
			}
		case ".dbf":
			dst = &a.Dbf
		case ".prj":
			dst = &prj
		case ".cpg":
			dst = &cpg
		default:
			continue
		}
		if *dst != nil {
			continue
		}

		b, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		*dst = b
	}

	if a.Shp == nil {
		return nil, eris.Wrap(ErrMissingFile, ".shp")
	}
	if a.Dbf == nil {
		return nil, eris.Wrap(ErrMissingFile, ".dbf")
	}
	a.Prj = strings.TrimSpace(string(prj))
	a.Cpg = strings.TrimSpace(string(cpg))

	return a, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "shp2geojson: open %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "shp2geojson: read %s", f.Name)
	}
	return b, nil
}

// Input builds a conversion input from the archive. A .cpg member overrides encoding.
// A .prj member overrides projection when it can be resolved; otherwise the failure is
// logged and projection is kept.
func (a *Archive) Input(encoding, projection string) Input {
	in := Input{
		Shp:        a.Shp,
		Dbf:        a.Dbf,
		Encoding:   encoding,
		Projection: projection,
	}

	if a.Cpg != "" {
		if _, err := LookupEncoding(a.Cpg); err == nil {
			in.Encoding = a.Cpg
		} else {
			zap.L().Warn("shp2geojson: ignoring code page", zap.String("cpg", a.Cpg), zap.Error(err))
		}
	}

	if a.Prj != "" {
		t, err := ProjectionFor(a.Prj)
		if err != nil {
			zap.L().Error("shp2geojson: unsupported projection", zap.String("archive", a.Name), zap.Error(err))
		} else {
			in.Transform = t
		}
	}

	return in
}

// ConvertArchive reads a zipped shapefile and converts it.
func ConvertArchive(ctx context.Context, data []byte, encoding, projection string, opts *Options) (*geojson.FeatureCollection, error) {
	a, err := ReadArchive(data)
	if err != nil {
		return nil, err
	}

	res, err := Convert(ctx, a.Input(encoding, projection), opts)
	if err != nil {
		return nil, eris.Wrapf(err, "convert %s", a.Name)
	}
	return res.Collection, nil
}
