package shp2geojson

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// ShapeType is the shape type code stored in shapefile headers and records.
type ShapeType int32

// Shape type codes defined by the ESRI Shapefile Technical Description.
const (
	ShapeNull        ShapeType = 0
	ShapePoint       ShapeType = 1
	ShapePolyLine    ShapeType = 3
	ShapePolygon     ShapeType = 5
	ShapeMultiPoint  ShapeType = 8
	ShapePointZ      ShapeType = 11
	ShapePolyLineZ   ShapeType = 13
	ShapePolygonZ    ShapeType = 15
	ShapeMultiPointZ ShapeType = 18
	ShapePointM      ShapeType = 21
	ShapePolyLineM   ShapeType = 23
	ShapePolygonM    ShapeType = 25
	ShapeMultiPointM ShapeType = 28
	ShapeMultiPatch  ShapeType = 31
)

var shapeTypeNames = map[ShapeType]string{
	ShapeNull:        "Null",
	ShapePoint:       "Point",
	ShapePolyLine:    "PolyLine",
	ShapePolygon:     "Polygon",
	ShapeMultiPoint:  "MultiPoint",
	ShapePointZ:      "PointZ",
	ShapePolyLineZ:   "PolyLineZ",
	ShapePolygonZ:    "PolygonZ",
	ShapeMultiPointZ: "MultiPointZ",
	ShapePointM:      "PointM",
	ShapePolyLineM:   "PolyLineM",
	ShapePolygonM:    "PolygonM",
	ShapeMultiPointM: "MultiPointM",
	ShapeMultiPatch:  "MultiPatch",
}

func (t ShapeType) String() string {
	if name, ok := shapeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int32(t))
}

// Known reports whether t is defined by the shapefile format.
func (t ShapeType) Known() bool {
	_, ok := shapeTypeNames[t]
	return ok
}

// Box is a two dimensional bounding box.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Geometry is the decoded payload of a shape record. The set of implementations is closed:
// Null, Point, Polyline, Polygon, MultiPoint and Unsupported.
type Geometry interface {
	Type() ShapeType
	isGeometry()
}

// Null is a record without geometry.
type Null struct{}

// Point is a single x/y position.
type Point struct {
	X, Y float64
}

// Polyline is an ordered set of parts over a flattened x/y array.
// Parts holds the index of the first point of each part.
type Polyline struct {
	Box    Box
	Parts  []int32
	Points []float64 // x0, y0, x1, y1, ...
}

// Polygon has the Polyline layout; every part is a ring.
type Polygon Polyline

// MultiPoint is a flat set of points without parts.
type MultiPoint struct {
	Box    Box
	Points []float64 // x0, y0, x1, y1, ...
}

// Unsupported stands in for a record whose shape type could not be decoded.
type Unsupported struct {
	Shape ShapeType
}

func (Null) Type() ShapeType { return ShapeNull }
func (Point) Type() ShapeType { return ShapePoint }
func (Polyline) Type() ShapeType { return ShapePolyLine }
func (Polygon) Type() ShapeType { return ShapePolygon }
func (MultiPoint) Type() ShapeType { return ShapeMultiPoint }
func (u Unsupported) Type() ShapeType { return u.Shape }

func (Null) isGeometry() {}
func (Point) isGeometry() {}
func (Polyline) isGeometry() {}
func (Polygon) isGeometry() {}
func (MultiPoint) isGeometry() {}
func (Unsupported) isGeometry() {}

// NumPoints returns the number of x/y pairs.
func (p Polyline) NumPoints() int { return len(p.Points) / 2 }

// NumPoints returns the number of x/y pairs.
func (p Polygon) NumPoints() int { return len(p.Points) / 2 }

// NumPoints returns the number of x/y pairs.
func (m MultiPoint) NumPoints() int { return len(m.Points) / 2 }

// partSpan returns the point index range [start, end) of part i.
func partSpan(parts []int32, numPoints, i int) (int, int) {
	start := int(parts[i])
	end := numPoints
	if i+1 < len(parts) {
		end = int(parts[i+1])
	}
	return start, end
}

// normalizeParts drops trailing part starts equal to numPoints. Some writers store the
// end offset as an extra part; it never opens a ring.
func normalizeParts(parts []int32, numPoints int) []int32 {
	for len(parts) > 1 && int(parts[len(parts)-1]) == numPoints {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// validateParts checks that part starts begin at zero, strictly increase and stay in range.
func validateParts(parts []int32, numPoints int) error {
	if len(parts) == 0 {
		if numPoints > 0 {
			return fmt.Errorf("%d points without parts", numPoints)
		}
		return nil
	}
	if parts[0] != 0 {
		return fmt.Errorf("first part starts at %d", parts[0])
	}
	for i := 1; i < len(parts); i++ {
		if parts[i] <= parts[i-1] {
			return fmt.Errorf("part %d starts at %d, not after %d", i, parts[i], parts[i-1])
		}
	}
	if last := int(parts[len(parts)-1]); last >= numPoints {
		return fmt.Errorf("last part starts at %d of %d points", last, numPoints)
	}
	return nil
}

// geometryToOrb converts a decoded geometry to a reprojected orb.Geometry.
// Null and Unsupported geometries yield nil. Any other variant is an error.
func geometryToOrb(g Geometry, rp *Reprojector, splitParts bool) (orb.Geometry, error) {
	switch v := g.(type) {
	case Point:
		return rp.point(v.X, v.Y)

	case Polyline:
		if splitParts && len(v.Parts) > 1 {
			return multiLineStringFromParts(v.Parts, v.Points, rp)
		}
		return lineStringFromXY(v.Points, rp)

	case Polygon:
		return polygonFromParts(v.Parts, v.Points, rp)

	case MultiPoint:
		return multiPointFromXY(v.Points, rp)

	case Null, Unsupported:
		return nil, nil

	default:
		return nil, eris.Wrapf(ErrUnsupportedShapeType, "no GeoJSON mapping for %T", g)
	}
}

// geoJSONType returns the GeoJSON geometry type produced for a shape type, or "".
func geoJSONType(t ShapeType) string {
	switch t {
	case ShapePoint:
		return "Point"
	case ShapePolyLine:
		return "LineString"
	case ShapePolygon:
		return "Polygon"
	case ShapeMultiPoint:
		return "MultiPoint"
	default:
		return ""
	}
}

func pointsFromXY(xy []float64, rp *Reprojector) ([]orb.Point, error) {
	points := make([]orb.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		p, err := rp.point(xy[i], xy[i+1])
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func lineStringFromXY(xy []float64, rp *Reprojector) (orb.LineString, error) {
	points, err := pointsFromXY(xy, rp)
	if err != nil {
		return nil, err
	}
	return orb.LineString(points), nil
}

func multiPointFromXY(xy []float64, rp *Reprojector) (orb.MultiPoint, error) {
	points, err := pointsFromXY(xy, rp)
	if err != nil {
		return nil, err
	}
	return orb.MultiPoint(points), nil
}

func polygonFromParts(parts []int32, xy []float64, rp *Reprojector) (orb.Polygon, error) {
	numPoints := len(xy) / 2
	poly := make(orb.Polygon, 0, len(parts))

	for i := range parts {
		start, end := partSpan(parts, numPoints, i)
		if start < 0 || start >= end || end > numPoints {
			continue
		}
		ring, err := pointsFromXY(xy[start*2:end*2], rp)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(ring))
	}

	return poly, nil
}

func multiLineStringFromParts(parts []int32, xy []float64, rp *Reprojector) (orb.MultiLineString, error) {
	numPoints := len(xy) / 2
	mls := make(orb.MultiLineString, 0, len(parts))

	for i := range parts {
		start, end := partSpan(parts, numPoints, i)
		if start < 0 || start >= end || end > numPoints {
			continue
		}
		ls, err := pointsFromXY(xy[start*2:end*2], rp)
		if err != nil {
			return nil, err
		}
		mls = append(mls, orb.LineString(ls))
	}

	return mls, nil
}
