package shp2geojson

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Input holds the buffers of one shapefile/dBase pair.
type Input struct {
	Shp        []byte    // .shp content
	Dbf        []byte    // .dbf content
	DbfText    string    // Dbf decoded with Encoding; decoded from Dbf when empty
	Encoding   string    // dBase text encoding (default utf-8)
	Projection string    // Source projection definition, see ProjectionFor
	Transform  Transform // Overrides Projection when set
}

// Result is the outcome of Convert.
type Result struct {
	Collection *geojson.FeatureCollection
	Shapefile  *Shapefile
	Dbase      *Dbase
}

// Convert decodes both files concurrently and, once both are done, assembles the
// FeatureCollection. A context cancelled before assembly discards the result.
func Convert(ctx context.Context, in Input, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	transform := in.Transform
	if transform == nil {
		t, err := ProjectionFor(in.Projection)
		if err != nil {
			return nil, err
		}
		transform = t
	}
	rp := NewReprojector(transform)

	var (
		shp *Shapefile
		dbf *Dbase
		g   errgroup.Group
	)

	g.Go(func() error {
		var err error
		if shp, err = DecodeShapefile(in.Shp, opts); err != nil {
			return eris.Wrap(err, "decode shapefile")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if in.DbfText == "" {
			dbf, err = DecodeDbaseBytes(in.Dbf, in.Encoding, opts)
		} else {
			dbf, err = DecodeDbase(in.Dbf, in.DbfText, in.Encoding, opts)
		}
		if err != nil {
			return eris.Wrap(err, "decode dbase")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "convert")
	}

	fc, err := Assemble(shp, dbf, rp, opts)
	if err != nil {
		return nil, err
	}

	return &Result{Collection: fc, Shapefile: shp, Dbase: dbf}, nil
}
