package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/model"
)

func runQuery(args []string) error {
	var (
		dbPath, near, configPath string
		radiusKm                 float64
		reviews                  int
		filter                   storage.Filter
	)

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	fs.StringVar(&dbPath, "db", "", "Path to .db file (required)")
	fs.StringVar(&filter.Category, "category", "", "Category contains")
	fs.StringVar(&filter.Location, "location", "", "Address contains")
	fs.StringVar(&filter.Text, "name", "", "Name or phone contains")
	fs.Float64Var(&filter.MinRating, "min-rating", 0, "Minimum star rating")
	fs.IntVar(&filter.Limit, "limit", 0, "Max places to print (0 = all)")
	fs.StringVar(&near, "near", "", "Geocode this location and keep places within -radius km of it")
	fs.Float64Var(&radiusKm, "radius", 2, "Radius in km for -near")
	fs.IntVar(&reviews, "reviews", 3, "Reviews to print per place")
	fs.StringVar(&configPath, "config", "", "YAML config file, for geocoder settings")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: placetap query [flags]\n\nWithout filters every stored place is listed.\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  placetap query -db data.db -category cafes -min-rating 4.5\n")
		fmt.Fprintf(os.Stderr, "  placetap query -db data.db -near \"Praça do Comércio, Lisbon\" -radius 1\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if dbPath == "" {
		return fmt.Errorf("-db is required")
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening db: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	places, err := store.Places(ctx, filter)
	if err != nil {
		return err
	}

	if near != "" {
		cfg, err := config.Load(configPath, "")
		if err != nil {
			return err
		}
		gc := geo.NewGeocoder(cfg.Browser.Proxy, geo.WithEndpoint(cfg.Geo.Endpoint), geo.WithUserAgent(cfg.Geo.UserAgent))
		area, err := gc.Geocode(ctx, near)
		if err != nil {
			return fmt.Errorf("geocoding %q: %w", near, err)
		}
		places = geo.FilterByRadius(places, area.Center, radiusKm)
	}

	printPlaces(os.Stdout, places, reviews)
	fmt.Fprintf(os.Stderr, "%d places\n", len(places))
	return nil
}

func printPlaces(w io.Writer, places []model.StoredPlace, maxReviews int) {
	for _, p := range places {
		fmt.Fprintf(w, "#%d %s\n", p.ID, p.Name)
		if p.Category != "" {
			fmt.Fprintf(w, "   category: %s\n", p.Category)
		}
		if p.Rating != nil {
			if p.ReviewCount != nil {
				fmt.Fprintf(w, "   rating:   %.1f (%d reviews)\n", *p.Rating, *p.ReviewCount)
			} else {
				fmt.Fprintf(w, "   rating:   %.1f\n", *p.Rating)
			}
		}
		if p.Address != "" {
			fmt.Fprintf(w, "   address:  %s\n", p.Address)
		}
		if p.Phone != "" {
			fmt.Fprintf(w, "   phone:    %s\n", p.Phone)
		}
		if p.Coords != nil {
			fmt.Fprintf(w, "   coords:   %.6f, %.6f\n", p.Coords.Lat, p.Coords.Lng)
		}
		if n := len(p.Images) + len(p.Videos); n > 0 {
			fmt.Fprintf(w, "   media:    %d images, %d videos\n", len(p.Images), len(p.Videos))
		}
		for i, r := range p.Reviews {
			if i == maxReviews {
				fmt.Fprintf(w, "   ... %d more reviews\n", len(p.Reviews)-i)
				break
			}
			stars := "-"
			if r.Rating != nil {
				stars = fmt.Sprintf("%.0f★", *r.Rating)
			}
			fmt.Fprintf(w, "   > %s %s (%s): %s\n", stars, r.Author, r.Date, truncate(r.Text, 120))
		}
		fmt.Fprintln(w)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
