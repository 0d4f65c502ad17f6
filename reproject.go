package shp2geojson

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
	"github.com/wroge/wgs84"
)

// Transform converts one source coordinate to WGS84 longitude/latitude.
type Transform func(x, y float64) (float64, float64, error)

// Identity returns the coordinate unchanged. It is the transform for data already in WGS84.
func Identity(x, y float64) (float64, float64, error) {
	return x, y, nil
}

// Reprojector applies a Transform to every coordinate of a conversion.
// It holds no mutable state and may be shared between goroutines.
type Reprojector struct {
	transform Transform
}

// NewReprojector wraps t. A nil t reprojects with Identity.
func NewReprojector(t Transform) *Reprojector {
	if t == nil {
		t = Identity
	}
	return &Reprojector{transform: t}
}

// Reproject converts a single x/y pair. Transform failures are returned as *ProjectionError.
func (r *Reprojector) Reproject(x, y float64) (float64, float64, error) {
	px, py, err := r.transform(x, y)
	if err != nil {
		return 0, 0, &ProjectionError{X: x, Y: y, Err: err}
	}
	return px, py, nil
}

func (r *Reprojector) point(x, y float64) (orb.Point, error) {
	px, py, err := r.Reproject(x, y)
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{px, py}, nil
}

// ProjectionError reports a coordinate the transform rejected.
type ProjectionError struct {
	X, Y float64
	Err  error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("shp2geojson: projection failure at (%g, %g): %v", e.X, e.Y, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// Is makes ProjectionError match ErrProjection.
func (e *ProjectionError) Is(target error) bool {
	return target == ErrProjection
}

// mercatorToWGS84 inverts spherical (web) Mercator.
func mercatorToWGS84(x, y float64) (float64, float64, error) {
	p := project.Mercator.ToWGS84(orb.Point{x, y})
	return p[0], p[1], nil
}

var errOutsideProjection = eris.New("coordinate outside the projection domain")

// crsTransform converts coordinates of crs to WGS84 longitude/latitude.
func crsTransform(crs wgs84.CoordinateReferenceSystem) Transform {
	toLonLat := wgs84.Transform(crs, wgs84.LonLat())
	return func(x, y float64) (float64, float64, error) {
		lon, lat, _ := toLonLat(x, y, 0)
		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			return 0, 0, errOutsideProjection
		}
		return lon, lat, nil
	}
}

// Taiwan datums. TWD67 uses the GRS67 ellipsoid with a seven parameter shift to WGS84,
// TWD97 uses GRS80 and needs no shift.
var (
	twd67 = wgs84.Helmert(6378160, 298.247167427, -752, -358, -179, -0.0000011698, 0.0000018398, 0.0000009822, 0.00002329)
	twd97 = wgs84.Datum{Spheroid: wgs84.GRS80{}}
)

// tm2 is the Taiwan 2 degree transverse Mercator grid centred on lon0.
func tm2(datum wgs84.Datum, lon0 float64) wgs84.ProjectedReferenceSystem {
	return datum.TransverseMercator(lon0, 0, 0.9999, 250000, 0)
}

var (
	projectionMu sync.RWMutex
	projections  = map[string]Transform{
		"epsg:4326":                     Identity,
		"wgs84":                         Identity,
		"crs84":                         Identity,
		"urn:ogc:def:crs:ogc:1.3:crs84": Identity,
		"epsg:3857":                     mercatorToWGS84,
		"epsg:3785":                     mercatorToWGS84,
		"epsg:900913":                   mercatorToWGS84,
		"epsg:102100":                   mercatorToWGS84,
	}

	crsCodes = newCRSRepository()

	wktAuthority  = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
	wktMercator   = []string{"web_mercator", "pseudo-mercator", "pseudo_mercator", "mercator_auxiliary_sphere", "popular visualisation"}
	wktProjection = regexp.MustCompile(`(?i)PROJECTION\[\s*"([^"]+)"`)
	wktParameter  = regexp.MustCompile(`(?i)PARAMETER\[\s*"([^"]+)"\s*,\s*([-+0-9.eE]+)\s*\]`)
	wktSpheroid   = regexp.MustCompile(`(?i)(?:SPHEROID|ELLIPSOID)\[\s*"[^"]*"\s*,\s*([-+0-9.eE]+)\s*,\s*([-+0-9.eE]+)`)
	wktToWGS84    = regexp.MustCompile(`(?i)TOWGS84\[([^\]]*)\]`)
	wktUnit       = regexp.MustCompile(`(?i)UNIT\[\s*"[^"]*"\s*,\s*([-+0-9.eE]+)`)
)

// newCRSRepository returns the EPSG repository of wgs84 extended with the Taiwan grids.
// EPSG:3821 is registered as the TWD67 TM2 grid, the definition most TWD67 shapefiles
// carry in practice.
func newCRSRepository() *wgs84.Repository {
	r := wgs84.EPSG()
	r.Add(3821, tm2(twd67, 121))
	r.Add(3827, tm2(twd67, 119))
	r.Add(3828, tm2(twd67, 121))
	r.Add(3825, tm2(twd97, 119))
	r.Add(3826, tm2(twd97, 121))
	return r
}

// RegisterProjection makes a transform available to ProjectionFor under name.
// Names are matched case-insensitively, e.g. "EPSG:3826".
func RegisterProjection(name string, t Transform) {
	projectionMu.Lock()
	defer projectionMu.Unlock()
	projections[strings.ToLower(strings.TrimSpace(name))] = t
}

// RegisterCRS makes a wgs84 coordinate reference system available to ProjectionFor
// under "EPSG:<code>" and as the EPSG authority of a .prj file.
func RegisterCRS(code int, crs wgs84.CoordinateReferenceSystem) {
	projectionMu.Lock()
	defer projectionMu.Unlock()
	crsCodes.Add(code, crs)
}

// ProjectionFor resolves a source projection definition to a Transform into WGS84.
// The definition may be an "EPSG:<code>" name, a bare EPSG code or the WKT content of a
// .prj file. An empty definition means WGS84.
func ProjectionFor(def string) (Transform, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return Identity, nil
	}

	if isWKT(def) {
		return projectionForWKT(def)
	}

	key := strings.ToLower(def)
	if isDigits(key) {
		key = "epsg:" + key
	}
	if t, ok := lookupProjection(key); ok {
		return t, nil
	}
	return nil, eris.Wrapf(ErrUnsupportedProjection, "%q", def)
}

func lookupProjection(key string) (Transform, bool) {
	projectionMu.RLock()
	defer projectionMu.RUnlock()
	if t, ok := projections[key]; ok {
		return t, true
	}

	code, ok := strings.CutPrefix(key, "epsg:")
	if !ok {
		return nil, false
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil, false
	}
	switch crs := crsCodes.Code(n).(type) {
	case nil, wgs84.GeocentricReferenceSystem:
		return nil, false
	default:
		return crsTransform(crs), true
	}
}

func projectionForWKT(wkt string) (Transform, error) {
	if m := wktAuthority.FindStringSubmatch(wkt); m != nil {
		if t, ok := lookupProjection("epsg:" + m[1]); ok {
			return t, nil
		}
	}

	lower := strings.ToLower(wkt)
	if strings.HasPrefix(lower, "projcs") || strings.HasPrefix(lower, "projcrs") {
		for _, name := range wktMercator {
			if strings.Contains(lower, name) {
				return mercatorToWGS84, nil
			}
		}
		if t, ok := transverseMercatorFromWKT(wkt); ok {
			return t, nil
		}
		return nil, eris.Wrapf(ErrUnsupportedProjection, "%.60s", wkt)
	}

	if strings.Contains(lower, "wgs_1984") || strings.Contains(lower, "wgs 84") || strings.Contains(lower, "wgs84") {
		return Identity, nil
	}
	return nil, eris.Wrapf(ErrUnsupportedProjection, "%.60s", wkt)
}

// transverseMercatorFromWKT builds a transform from a PROJCS with a Transverse_Mercator
// (or Gauss_Kruger) projection. The datum shift comes from TOWGS84 when present and a
// UNIT following the projection is taken as the linear unit.
func transverseMercatorFromWKT(wkt string) (Transform, bool) {
	m := wktProjection.FindStringSubmatch(wkt)
	if m == nil {
		return nil, false
	}
	switch strings.ToLower(strings.ReplaceAll(m[1], " ", "_")) {
	case "transverse_mercator", "gauss_kruger":
	default:
		return nil, false
	}

	sph := wktSpheroid.FindStringSubmatch(wkt)
	if sph == nil {
		return nil, false
	}
	a, errA := strconv.ParseFloat(sph[1], 64)
	rf, errF := strconv.ParseFloat(sph[2], 64)
	if errA != nil || errF != nil || a <= 0 || rf <= 0 {
		return nil, false
	}

	var shift [7]float64
	if tw := wktToWGS84.FindStringSubmatch(wkt); tw != nil {
		values := strings.Split(tw[1], ",")
		if len(values) != 3 && len(values) != 7 {
			return nil, false
		}
		for i, v := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, false
			}
			shift[i] = f
		}
	}

	unit := 1.0
	projAt := wktProjection.FindStringIndex(wkt)[0]
	if units := wktUnit.FindAllStringSubmatchIndex(wkt, -1); len(units) > 0 {
		if last := units[len(units)-1]; last[0] > projAt {
			f, err := strconv.ParseFloat(wkt[last[2]:last[3]], 64)
			if err != nil || f <= 0 {
				return nil, false
			}
			unit = f
		}
	}

	params := map[string]float64{"scale_factor": 1}
	for _, p := range wktParameter.FindAllStringSubmatch(wkt, -1) {
		f, err := strconv.ParseFloat(p[2], 64)
		if err != nil {
			return nil, false
		}
		params[strings.ToLower(p[1])] = f
	}
	lon0 := firstParam(params, "central_meridian", "longitude_of_center", "longitude_of_origin")
	lat0 := firstParam(params, "latitude_of_origin", "latitude_of_center")

	datum := wgs84.Helmert(a, rf, shift[0], shift[1], shift[2], shift[3], shift[4], shift[5], shift[6])
	crs := datum.TransverseMercator(lon0, lat0, params["scale_factor"], params["false_easting"]*unit, params["false_northing"]*unit)

	t := crsTransform(crs)
	if unit == 1 {
		return t, true
	}
	return func(x, y float64) (float64, float64, error) {
		return t(x*unit, y*unit)
	}, true
}

func firstParam(params map[string]float64, names ...string) float64 {
	for _, name := range names {
		if v, ok := params[name]; ok {
			return v
		}
	}
	return 0
}

func isWKT(def string) bool {
	upper := strings.ToUpper(def)
	for _, prefix := range []string{"GEOGCS[", "PROJCS[", "GEOGCRS[", "PROJCRS["} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
