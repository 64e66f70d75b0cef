package main

import (
	"fmt"
	"os"

	"github.com/rendis/placetap/internal/tui"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		var run func([]string) error
		switch os.Args[1] {
		case "scrape":
			run = runScrape
		case "parse":
			run = runParse
		case "export":
			run = runExport
		case "query":
			run = runQuery
		case "version":
			fmt.Println("placetap " + version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
		if run != nil {
			if err := run(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	// No subcommand → launch TUI
	if err := tui.Run(version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `placetap - Google Maps business listing extractor

Usage:
  placetap                 Launch interactive TUI
  placetap scrape [flags]  Extract businesses for a category and location
  placetap parse [flags]   Extract businesses from a saved results page
  placetap export [flags]  Export a .db to CSV, JSON or YAML
  placetap query [flags]   Search stored businesses
  placetap version         Show version

Run 'placetap <command> --help' for flags.
`)
}
