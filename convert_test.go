package shp2geojson

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"
)

func TestConvert(t *testing.T) {
	in := Input{
		Shp: buildShp(ShapePoint, Box{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}, pointContent(1, 2), pointContent(3, 4)),
		Dbf: nameRows(t, "a", "b"),
	}

	res, err := Convert(context.Background(), in, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Shapefile)
	require.NotNil(t, res.Dbase)
	assert.Len(t, res.Shapefile.Records, 2)
	assert.Len(t, res.Dbase.Records, 2)

	fc := res.Collection
	require.Len(t, fc.Features, 2)
	assert.Equal(t, orb.Point{3, 4}, fc.Features[1].Geometry)
	assert.Equal(t, "b", fc.Features[1].Properties["name"])
}

func TestConvert_Big5(t *testing.T) {
	dbf := buildDbf(t, traditionalchinese.Big5, []testField{{"NAME", 'C', 4}, {"ID", 'C', 2}}, [][]string{
		{"中ab", "01"},
		{"臺北", "02"},
	})
	in := Input{
		Shp:      buildShp(ShapePoint, Box{}, pointContent(121.5, 25.0), pointContent(121.6, 25.1)),
		Dbf:      dbf,
		Encoding: "big5",
	}

	res, err := Convert(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, res.Collection.Features, 2)

	assert.Equal(t, "中ab", res.Collection.Features[0].Properties["NAME"])
	assert.Equal(t, "01", res.Collection.Features[0].Properties["ID"])
	assert.Equal(t, "臺北", res.Collection.Features[1].Properties["NAME"])
	assert.Equal(t, "02", res.Collection.Features[1].Properties["ID"])
}

func TestConvert_Projection(t *testing.T) {
	in := Input{
		Shp:        buildShp(ShapePoint, Box{}, pointContent(13525318.13, 2875744.62)),
		Dbf:        nameRows(t, "taipei"),
		Projection: "EPSG:3857",
	}

	res, err := Convert(context.Background(), in, nil)
	require.NoError(t, err)

	p := res.Collection.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 121.5, p.Lon(), 1e-6)
	assert.InDelta(t, 25.0, p.Lat(), 1e-6)
}

func TestConvert_TransformOverridesProjection(t *testing.T) {
	in := Input{
		Shp:        buildShp(ShapePoint, Box{}, pointContent(1, 1)),
		Dbf:        nameRows(t, "p"),
		Projection: "EPSG:3857",
		Transform: func(x, y float64) (float64, float64, error) {
			return x * 10, y * 10, nil
		},
	}

	res, err := Convert(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{10, 10}, res.Collection.Features[0].Geometry)
}

func TestConvert_Errors(t *testing.T) {
	shp := buildShp(ShapePoint, Box{}, pointContent(1, 1))
	dbf := nameRows(t, "p")

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"bad shapefile", Input{Shp: shp[:40], Dbf: dbf}, ErrTruncatedBuffer},
		{"bad dbase", Input{Shp: shp, Dbf: dbf[:20]}, ErrTruncatedBuffer},
		{"bad encoding", Input{Shp: shp, Dbf: dbf, Encoding: "klingon"}, ErrUnsupportedEncoding},
		{"bad projection", Input{Shp: shp, Dbf: dbf, Projection: "EPSG:2193"}, ErrUnsupportedProjection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Convert(context.Background(), tt.in, nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, eris.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := Input{
		Shp: buildShp(ShapePoint, Box{}, pointContent(1, 1)),
		Dbf: nameRows(t, "p"),
	}

	res, err := Convert(ctx, in, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}
