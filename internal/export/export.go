// Package export renders stored places as CSV, JSON or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rendis/placetap/internal/model"
)

// Formats lists the supported output formats.
var Formats = []string{"csv", "json", "yaml"}

// Write encodes places to w in format.
func Write(w io.Writer, format string, places []model.StoredPlace) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(places)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(places); err != nil {
			return err
		}
		return enc.Close()
	case "csv":
		return writeCSV(w, places)
	}
	return fmt.Errorf("unsupported format: %s", format)
}

func writeCSV(w io.Writer, places []model.StoredPlace) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"id", "name", "address", "phone", "rating", "review_count", "category",
		"lat", "lng", "images", "videos", "reviews", "query", "source", "scraped_at",
	})

	for _, p := range places {
		var rating, count, lat, lng string
		if p.Rating != nil {
			rating = strconv.FormatFloat(*p.Rating, 'f', 1, 64)
		}
		if p.ReviewCount != nil {
			count = strconv.Itoa(*p.ReviewCount)
		}
		if p.Coords != nil {
			lat = strconv.FormatFloat(p.Coords.Lat, 'f', 6, 64)
			lng = strconv.FormatFloat(p.Coords.Lng, 'f', 6, 64)
		}
		cw.Write([]string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Address,
			p.Phone,
			rating,
			count,
			p.Category,
			lat,
			lng,
			strings.Join(p.Images, " "),
			strings.Join(p.Videos, " "),
			strconv.Itoa(len(p.Reviews)),
			p.Query,
			string(p.Source),
			p.ScrapedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	return cw.Error()
}

// DefaultPath places the export next to the database: data.db becomes data.<format>.
func DefaultPath(dbPath, format string) string {
	base := strings.TrimSuffix(filepath.Base(dbPath), ".db")
	return filepath.Join(filepath.Dir(dbPath), base+"."+format)
}

// File writes places to path in format.
func File(path, format string, places []model.StoredPlace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := Write(f, format, places); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
