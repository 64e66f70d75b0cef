package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/export"
)

func runExport(args []string) error {
	var dbPath, outputPath, format string

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&dbPath, "db", "", "Path to .db file (required)")
	fs.StringVar(&outputPath, "output", "", "Output file path (default: same dir as db)")
	fs.StringVar(&format, "format", "csv", "Export format: csv, json or yaml")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: placetap export [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  placetap export -db ./projects/placetap_20260212_101500.db\n")
		fmt.Fprintf(os.Stderr, "  placetap export -db data.db -format json -output results.json\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if dbPath == "" {
		return fmt.Errorf("-db is required")
	}
	format = strings.ToLower(format)
	if !slices.Contains(export.Formats, format) {
		return fmt.Errorf("unsupported format: %s (use %s)", format, strings.Join(export.Formats, ", "))
	}

	if outputPath == "" {
		outputPath = export.DefaultPath(dbPath, format)
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening db: %w", err)
	}
	defer store.Close()

	places, err := store.Places(context.Background(), storage.Filter{})
	if err != nil {
		return fmt.Errorf("loading db: %w", err)
	}
	if len(places) == 0 {
		return fmt.Errorf("no places found in database")
	}

	if err := export.File(outputPath, format, places); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d places to %s\n", len(places), outputPath)
	return nil
}
