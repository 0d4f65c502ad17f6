package shp2geojson

import (
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Assemble joins shape records with dBase rows by position and builds a reprojected
// FeatureCollection.
//
// Output stops at the shorter of the two record lists. Null and unsupported geometries are
// skipped. The collection bbox is the reprojection of the two corners of the shapefile
// header box, not an extent recomputed from the features.
func Assemble(shp *Shapefile, dbf *Dbase, rp *Reprojector, opts *Options) (*geojson.FeatureCollection, error) {
	if shp == nil {
		return nil, eris.Wrap(ErrMissingFile, "assemble: no shapefile")
	}
	if dbf == nil {
		return nil, eris.Wrap(ErrMissingFile, "assemble: no dbase file")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if rp == nil {
		rp = NewReprojector(nil)
	}

	bbox, err := reprojectBBox(shp.Header.Box, rp)
	if err != nil {
		return nil, eris.Wrap(err, "assemble: bbox")
	}

	fc := geojson.NewFeatureCollection()
	fc.BBox = bbox

	n := len(shp.Records)
	if len(dbf.Records) != n {
		zap.L().Warn("shp2geojson: shape and dbase record counts differ",
			zap.Int("shapes", len(shp.Records)),
			zap.Int("rows", len(dbf.Records)),
		)
		if len(dbf.Records) < n {
			n = len(dbf.Records)
		}
	}

	skipped := 0
	for i := 0; i < n; i++ {
		rec := shp.Records[i]

		geom, err := geometryToOrb(rec.Geometry, rp, opts.SplitParts)
		if err != nil {
			return nil, eris.Wrapf(err, "assemble: record %d", rec.Number)
		}
		if geom == nil {
			skipped++
			continue
		}

		feature := geojson.NewFeature(geom)
		feature.Properties = toProperties(dbf.Records[i])
		fc.Append(feature)
	}

	if skipped > 0 {
		zap.L().Debug("shp2geojson: skipped records without geometry",
			zap.Int("skipped", skipped),
			zap.Int("features", len(fc.Features)),
		)
	}

	return fc, nil
}

// reprojectBBox reprojects the lower-left and upper-right corners of box.
func reprojectBBox(box Box, rp *Reprojector) (geojson.BBox, error) {
	minX, minY, err := rp.Reproject(box.MinX, box.MinY)
	if err != nil {
		return nil, err
	}
	maxX, maxY, err := rp.Reproject(box.MaxX, box.MaxY)
	if err != nil {
		return nil, err
	}
	return geojson.BBox{minX, minY, maxX, maxY}, nil
}
