// Package shp2geojson converts ESRI Shapefiles and their dBase attribute tables into
// orb geojson.FeatureCollection values, reprojecting coordinates to WGS84 on the way.
//
// The package decodes both formats straight from in-memory byte buffers. Fetching files,
// unpacking archives and resolving projection definitions are handled by the callers,
// although ReadArchive and ProjectionFor cover the common cases.
package shp2geojson

import (
	"github.com/rotisserie/eris"
)

// Common errors returned by this package.
var (
	ErrInvalidFileCode       = eris.New("shp2geojson: invalid file code")
	ErrTruncatedBuffer       = eris.New("shp2geojson: truncated buffer")
	ErrUnsupportedShapeType  = eris.New("shp2geojson: unsupported shape type")
	ErrMalformedRecord       = eris.New("shp2geojson: malformed record")
	ErrUnsupportedEncoding   = eris.New("shp2geojson: unsupported encoding")
	ErrProjection            = eris.New("shp2geojson: projection failure")
	ErrUnsupportedProjection = eris.New("shp2geojson: unsupported projection")
	ErrMissingFile           = eris.New("shp2geojson: missing file in archive")
	ErrReaderClosed          = eris.New("shp2geojson: reader is closed")
)

// DefaultEncoding is the dBase text encoding used when none is given.
const DefaultEncoding = "utf-8"

// Options configures decoding and assembly.
type Options struct {
	MultiPoint  bool // Decode MultiPoint records instead of rejecting them
	SplitParts  bool // Emit MultiLineString for polylines with more than one part
	TypedFields bool // Convert N/F fields to float64 and L fields to bool
}

// DefaultOptions returns the default conversion options.
func DefaultOptions() *Options {
	return &Options{}
}
