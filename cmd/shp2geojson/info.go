package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [archive.zip | file.shp]",
	Short: "Print metadata about a shapefile dataset",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := openReader(cmd.Context(), args)
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reader.Header()); err != nil {
			return eris.Wrap(err, "info: write header")
		}
		return nil
	},
}

func init() {
	addInputFlags(infoCmd.Flags())
	rootCmd.AddCommand(infoCmd)
}
