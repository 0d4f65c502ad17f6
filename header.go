package shp2geojson

// ColumnInfo describes an attribute column of a shapefile dataset.
// Type is the dBase field type and Length its width in bytes.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Length       int    `json:"length"`
	DecimalCount int    `json:"decimal_count,omitempty"`
}

// Header contains metadata about a decoded shapefile dataset.
// GeometryType is the GeoJSON geometry type for ShapeType, or "Unknown". Envelope is the
// reprojected bounding box [minX, minY, maxX, maxY]. FailedCount counts shape records that
// could not be decoded.
type Header struct {
	Name          string       `json:"name"`
	ShapeType     ShapeType    `json:"shape_type"`
	GeometryType  string       `json:"geometry_type"`
	RecordsCount  int          `json:"records_count"`
	FeaturesCount int          `json:"features_count"`
	FailedCount   int          `json:"failed_count"`
	Envelope      [4]float64   `json:"envelope"`
	Encoding      string       `json:"encoding"`
	Columns       []ColumnInfo `json:"columns"`
}

// newHeader summarizes a conversion result.
func newHeader(name string, res *Result) *Header {
	h := &Header{
		Name:          name,
		ShapeType:     res.Shapefile.Header.ShapeType,
		GeometryType:  geoJSONType(res.Shapefile.Header.ShapeType),
		RecordsCount:  len(res.Shapefile.Records),
		FeaturesCount: len(res.Collection.Features),
		FailedCount:   res.Shapefile.Failed(),
		Encoding:      res.Dbase.Encoding,
		Columns:       make([]ColumnInfo, 0, len(res.Dbase.Header.Fields)),
	}
	if h.GeometryType == "" {
		h.GeometryType = "Unknown"
	}
	copy(h.Envelope[:], res.Collection.BBox)

	for _, f := range res.Dbase.Header.Fields {
		h.Columns = append(h.Columns, ColumnInfo{
			Name:         f.Name,
			Type:         string(f.Type),
			Length:       f.Length,
			DecimalCount: f.DecimalCount,
		})
	}

	return h
}
