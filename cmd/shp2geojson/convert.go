package main

import (
	"context"
	"io"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	shp2geojson "github.com/tingold/orb-shp2geojson"
)

var (
	convertShp        string
	convertDbf        string
	convertPrj        string
	convertEncoding   string
	convertProjection string
	convertOutput     string
	convertPretty     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [archive.zip | file.shp]",
	Short: "Convert a shapefile dataset to GeoJSON",
	Long:  "Converts a zipped shapefile, a .shp file with its sibling .dbf, or an explicit --shp/--dbf pair to a GeoJSON FeatureCollection.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := openReader(cmd.Context(), args)
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		fc, err := reader.ReadAll()
		if err != nil {
			return eris.Wrap(err, "convert")
		}

		opts := &shp2geojson.WriteOptions{}
		if convertPretty {
			opts.Indent = "  "
		}
		if err := writeOutput(cmd.OutOrStdout(), fc, opts); err != nil {
			return err
		}

		h := reader.Header()
		zap.L().Info("convert complete",
			zap.String("dataset", h.Name),
			zap.String("geometry_type", h.GeometryType),
			zap.Int("features", h.FeaturesCount),
			zap.Int("failed", h.FailedCount),
			zap.String("output", convertOutput),
		)
		return nil
	},
}

// writeOutput writes fc to --output, or to stdout when no output file is set.
func writeOutput(stdout io.Writer, fc *geojson.FeatureCollection, opts *shp2geojson.WriteOptions) error {
	if convertOutput == "" || convertOutput == "-" {
		if err := shp2geojson.Write(stdout, fc, opts); err != nil {
			return eris.Wrap(err, "convert: write output")
		}
		return nil
	}

	f, err := os.Create(convertOutput)
	if err != nil {
		return eris.Wrap(err, "convert: create output")
	}
	if err := shp2geojson.Write(f, fc, opts); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "convert: write output")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "convert: close output")
	}
	return nil
}

// openReader opens the dataset named by args or by the --shp/--dbf flags.
func openReader(ctx context.Context, args []string) (*shp2geojson.Reader, error) {
	ro := &shp2geojson.ReaderOptions{
		Encoding:   cfg.Convert.Encoding,
		Projection: cfg.Convert.Projection,
		Options:    cfg.Convert.Options(),
	}
	if convertEncoding != "" {
		ro.Encoding = convertEncoding
	}
	if convertProjection != "" {
		ro.Projection = convertProjection
	}

	switch {
	case len(args) == 1:
		return shp2geojson.NewReader(ctx, args[0], ro)
	case convertShp != "" && convertDbf != "":
		a, err := readPair()
		if err != nil {
			return nil, err
		}
		return shp2geojson.NewReaderFromArchive(ctx, a, ro)
	default:
		return nil, eris.New("convert: an archive, a .shp file or both --shp and --dbf are required")
	}
}

func readPair() (*shp2geojson.Archive, error) {
	shp, err := os.ReadFile(convertShp)
	if err != nil {
		return nil, eris.Wrap(err, "convert: read shp")
	}
	dbf, err := os.ReadFile(convertDbf)
	if err != nil {
		return nil, eris.Wrap(err, "convert: read dbf")
	}

	a := &shp2geojson.Archive{Name: convertShp, Shp: shp, Dbf: dbf}
	if convertPrj != "" {
		prj, err := os.ReadFile(convertPrj)
		if err != nil {
			return nil, eris.Wrap(err, "convert: read prj")
		}
		a.Prj = string(prj)
	}
	return a, nil
}

// addInputFlags registers the flags that select and decode a dataset.
func addInputFlags(fs *pflag.FlagSet) {
	fs.StringVar(&convertShp, "shp", "", "path to .shp file")
	fs.StringVar(&convertDbf, "dbf", "", "path to .dbf file")
	fs.StringVar(&convertPrj, "prj", "", "path to .prj file (optional)")
	fs.StringVar(&convertEncoding, "encoding", "", "dBase text encoding (default from config)")
	fs.StringVar(&convertProjection, "projection", "", "source projection, e.g. EPSG:3826 (default from config)")
}

func init() {
	addInputFlags(convertCmd.Flags())
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (default stdout)")
	convertCmd.Flags().BoolVar(&convertPretty, "pretty", false, "indent the GeoJSON output")
	rootCmd.AddCommand(convertCmd)
}
