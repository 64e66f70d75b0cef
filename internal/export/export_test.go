package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rendis/placetap/internal/model"
)

func samplePlaces() []model.StoredPlace {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.StoredPlace{
		{ID: 1, PlaceRecord: model.PlaceRecord{
			Name: "Cafe A", Address: "Rua Augusta 1, Lisboa", Rating: model.Float(4.6), ReviewCount: model.Int(1200),
			Category: "cafes", Coords: &model.Coordinates{Lat: 38.71, Lng: -9.14},
			Images: []string{"https://lh3.googleusercontent.com/p/1"}, Videos: []string{},
			Reviews: []model.ReviewRecord{{Author: "Ana", Rating: model.Float(5), Text: "Great.", Images: []string{}}},
			Query:   "cafes in Lisbon", Source: model.SourceDetail, ScrapedAt: ts,
		}},
		{ID: 2, PlaceRecord: model.PlaceRecord{
			Name: "Cafe, \"B\"", Category: "Unknown", Images: []string{}, Videos: []string{}, Reviews: []model.ReviewRecord{},
			Source: model.SourceSummary, ScrapedAt: ts,
		}},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "csv", samplePlaces()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "name", rows[0][1])
	assert.Equal(t, []string{"1", "Cafe A", "Rua Augusta 1, Lisboa", "", "4.6", "1200", "cafes",
		"38.710000", "-9.140000", "https://lh3.googleusercontent.com/p/1", "", "1", "cafes in Lisbon", "detail",
		"2025-03-01T10:00:00Z"}, rows[1])
	assert.Equal(t, `Cafe, "B"`, rows[2][1])
	assert.Empty(t, rows[2][4], "missing rating stays empty")
	assert.Empty(t, rows[2][7])
}

func TestWriteJSONAndYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", samplePlaces()))
	var fromJSON []model.StoredPlace
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, samplePlaces(), fromJSON)
	assert.Contains(t, buf.String(), `"images": []`)

	buf.Reset()
	require.NoError(t, Write(&buf, "yaml", samplePlaces()))
	assert.Contains(t, buf.String(), "name: Cafe A")
	var fromYAML []model.StoredPlace
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, "Cafe A", fromYAML[0].Name)
	assert.EqualValues(t, 1, fromYAML[0].ID)

	assert.Error(t, Write(&buf, "xml", nil))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := DefaultPath(filepath.Join(dir, "placetap_20250301_100000.db"), "json")
	assert.Equal(t, filepath.Join(dir, "placetap_20250301_100000.json"), path)

	require.NoError(t, File(path, "json", samplePlaces()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Cafe A"`)

	assert.Error(t, File(filepath.Join(dir, "missing", "out.csv"), "csv", nil))
}
