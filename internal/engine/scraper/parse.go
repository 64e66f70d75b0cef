package scraper

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/rendis/placetap/internal/model"
)

var (
	numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countRe  = regexp.MustCompile(`\d{1,3}(?:[,.\x{00a0} ]\d{3})+|\d+`)
	// reviewsRe anchors the count to the word after it, so "4.5 stars, 1,234 reviews" reads 1234.
	reviewsRe = regexp.MustCompile(`(?i)(\d{1,3}(?:[,.\x{00a0} ]\d{3})+|\d+)\s*reviews?\b`)
	phoneRe   = regexp.MustCompile(`\+?\(?\d[\d\s\-()]{8,}`)
	// legendRe matches the rating legend rendered next to the stars, e.g. "4.5 stars".
	legendRe = regexp.MustCompile(`(?i)^\s*(?:\d(?:[.,]\d)?\s*)?stars?\s*$`)
	bgURLRe  = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)

	// Coordinate patterns in priority order.
	coordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/@(-?\d+\.\d+),(-?\d+\.\d+)`),
		regexp.MustCompile(`/place/[^/]+/@(-?\d+\.\d+),(-?\d+\.\d+)`),
		regexp.MustCompile(`!3d(-?\d+\.\d+)!4d(-?\d+\.\d+)`),
	}
)

// imageHosts is the allow-list for photo URLs; anything else is UI iconography.
var imageHosts = []string{"googleusercontent.com", "ggpht.com"}

var nonAddressTokens = []string{"website", "phone", "directions", "save"}

// addressJunk is the icon glyph the map page prefixes addresses with.
const addressJunk = "\ue0c8"

// parseRating reads the first decimal number of raw and keeps it only when it lies in [0, 5].
func parseRating(raw string) (float64, bool) {
	m := numberRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// parseCount reads a comma-grouped non-negative integer such as "1,234" or "(87)".
// When raw names reviews, the number in front of that word wins.
func parseCount(raw string) (int, bool) {
	m := countRe.FindString(raw)
	if sub := reviewsRe.FindStringSubmatch(raw); len(sub) == 2 {
		m = sub[1]
	}
	if m == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	v, err := strconv.Atoi(digits)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseCoordinates extracts a lat/lng pair from a map URL, or nil.
func ParseCoordinates(url string) *model.Coordinates {
	for _, re := range coordPatterns {
		m := re.FindStringSubmatch(url)
		if len(m) != 3 {
			continue
		}
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lng, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		c := model.Coordinates{Lat: lat, Lng: lng}
		if c.Valid() {
			return &c
		}
	}
	return nil
}

func cleanAddress(raw string) string {
	s := strings.ReplaceAll(raw, addressJunk, "")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Rules used by the selector tables.

func ratingRule(raw string) (string, bool) {
	v, ok := parseRating(raw)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

func countRule(raw string) (string, bool) {
	v, ok := parseCount(raw)
	if !ok {
		return "", false
	}
	return strconv.Itoa(v), true
}

func phoneRule(raw string) (string, bool) {
	m := strings.TrimSpace(phoneRe.FindString(raw))
	if m == "" {
		return "", false
	}
	digits := 0
	for _, r := range m {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return m, digits >= 7
}

func addressRule(raw string) (string, bool) {
	s := cleanAddress(raw)
	if len(s) <= 5 {
		return "", false
	}
	lower := strings.ToLower(s)
	for _, tok := range nonAddressTokens {
		if strings.Contains(lower, tok) {
			return "", false
		}
	}
	return s, true
}

// stripLabel drops a short "Label: " prefix such as the one accessible names carry.
func stripLabel(raw string) string {
	if i := strings.Index(raw, ":"); i >= 0 && i < 20 {
		return raw[i+1:]
	}
	return raw
}

// ariaAddressRule strips the "Address: " label the accessible name carries.
func ariaAddressRule(raw string) (string, bool) {
	return addressRule(stripLabel(raw))
}

// ariaPhoneRule strips the "Phone: " label the accessible name carries.
func ariaPhoneRule(raw string) (string, bool) {
	return phoneRule(stripLabel(raw))
}

// panelLabels are whole texts of panel controls that share headline markup with names.
var panelLabels = map[string]struct{}{
	"collapse side panel":        {},
	"expand side panel":          {},
	"results":                    {},
	"sponsored":                  {},
	"available search options":   {},
	"map · use arrow keys":       {},
	"use arrow keys to navigate": {},
}

// nameRule accepts any non-empty text except a panel label or the rating legend.
// Names may contain words like "Stars"; only an exact control text is rejected.
func nameRule(raw string) (string, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" || legendRe.MatchString(s) {
		return "", false
	}
	if _, ok := panelLabels[strings.ToLower(s)]; ok {
		return "", false
	}
	return s, true
}

func imageRule(raw string) (string, bool) {
	s := html.UnescapeString(strings.TrimSpace(raw))
	if m := bgURLRe.FindStringSubmatch(s); len(m) == 2 {
		s = m[1]
	}
	if !strings.HasPrefix(s, "https://") {
		return "", false
	}
	for _, host := range imageHosts {
		if strings.Contains(s, host) {
			return s, true
		}
	}
	return "", false
}

func placeLinkRule(raw string) (string, bool) {
	if strings.Contains(raw, "/maps/place/") {
		return raw, true
	}
	return "", false
}
