package scraper

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/placetap/internal/model"
)

const (
	unknownAuthor = "Unknown"
	// Category defaults per pipeline stage when neither the record nor the caller has one.
	detailCategoryDefault  = "general"
	summaryCategoryDefault = "Unknown"
)

// Normalize returns rec with its text cleaned, invalid numbers dropped and defaults filled.
// Normalize(Normalize(r)) == Normalize(r) for every r.
func Normalize(rec model.PlaceRecord, fallbackCategory string) model.PlaceRecord {
	out := rec
	out.Name = cleanText(rec.Name)
	out.Address = cleanAddress(cleanText(rec.Address))
	out.Phone = cleanText(rec.Phone)
	out.Query = cleanText(rec.Query)

	out.Category = cleanText(rec.Category)
	if out.Category == "" {
		out.Category = cleanText(fallbackCategory)
	}
	if out.Category == "" {
		if rec.Source == model.SourceSummary {
			out.Category = summaryCategoryDefault
		} else {
			out.Category = detailCategoryDefault
		}
	}

	out.Rating = validRating(rec.Rating)
	if rec.ReviewCount != nil && *rec.ReviewCount >= 0 {
		out.ReviewCount = model.Int(*rec.ReviewCount)
	} else {
		out.ReviewCount = nil
	}
	if rec.Coords != nil && rec.Coords.Valid() {
		c := *rec.Coords
		out.Coords = &c
	} else {
		out.Coords = nil
	}

	out.Images = dedupeURLs(rec.Images)
	out.Videos = dedupeURLs(rec.Videos)

	out.Reviews = make([]model.ReviewRecord, 0, len(rec.Reviews))
	for _, r := range rec.Reviews {
		nr, ok := normalizeReview(r)
		if ok {
			out.Reviews = append(out.Reviews, nr)
		}
	}

	if out.ScrapedAt.IsZero() {
		out.ScrapedAt = time.Now().UTC()
	}
	return out
}

func normalizeReview(r model.ReviewRecord) (model.ReviewRecord, bool) {
	out := r
	out.Author = cleanText(r.Author)
	if out.Author == "" {
		out.Author = unknownAuthor
	}
	out.Rating = validRating(r.Rating)
	out.Text = strings.TrimSpace(norm.NFC.String(strings.ToValidUTF8(r.Text, "")))
	out.Date = cleanText(r.Date)
	out.Images = dedupeURLs(r.Images)
	if out.Text == "" && out.Rating == nil {
		return out, false
	}
	return out, true
}

// validRating drops values outside [0, 5] instead of clamping them.
func validRating(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || *v < 0 || *v > 5 {
		return nil
	}
	return model.Float(*v)
}

func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func dedupeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// FromRaw coerces a loosely typed capture (as produced by scripts or snapshot tools) into a
// normalized record. Byte strings are decoded, scalars stringified and numbers parsed.
func FromRaw(raw map[string]any, fallbackCategory string) (model.PlaceRecord, error) {
	var rec model.PlaceRecord
	rec.Name = rawString(raw["name"])
	if rec.Name == "" {
		return rec, fmt.Errorf("raw record has no name")
	}
	rec.Address = rawString(raw["address"])
	rec.Phone = rawString(raw["phone"])
	rec.Category = rawString(raw["category"])
	rec.Query = rawString(raw["query"])
	rec.Source = model.Source(rawString(raw["source"]))
	rec.Rating = rawRating(raw["rating"])
	rec.ReviewCount = rawCount(firstOf(raw, "review_count", "reviews_count", "total_reviews"))

	lat, latOK := rawFloat(raw["latitude"])
	lng, lngOK := rawFloat(raw["longitude"])
	if latOK && lngOK {
		rec.Coords = &model.Coordinates{Lat: lat, Lng: lng}
	}

	rec.Images = rawStrings(raw["images"])
	rec.Videos = rawStrings(raw["videos"])
	if t, err := cast.ToTimeE(raw["scraped_at"]); err == nil {
		rec.ScrapedAt = t.UTC()
	}

	for _, item := range cast.ToSlice(raw["reviews"]) {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			continue
		}
		rec.Reviews = append(rec.Reviews, model.ReviewRecord{
			Author: rawString(m["author"]),
			Rating: rawRating(m["rating"]),
			Text:   rawString(m["text"]),
			Date:   rawString(m["date"]),
			Images: rawStrings(m["images"]),
		})
	}
	return Normalize(rec, fallbackCategory), nil
}

func firstOf(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func rawString(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

func rawStrings(v any) []string {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []byte:
		return []string{string(t)}
	}
	var out []string
	for _, item := range cast.ToSlice(v) {
		if s := rawString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func rawFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		v = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func rawRating(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if f, ok := rawFloat(t); ok {
			return validRating(&f)
		}
		if f, ok := parseRating(t); ok {
			return &f
		}
		return nil
	case []byte:
		return rawRating(string(t))
	}
	f, ok := rawFloat(v)
	if !ok {
		return nil
	}
	return validRating(&f)
}

func rawCount(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if n, ok := parseCount(t); ok {
			return &n
		}
		return nil
	case []byte:
		return rawCount(string(t))
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// Fold lower-cases s and strips diacritics, for accent-insensitive matching.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
