package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rendis/placetap/internal/model"
)

// ErrTxDone is returned by operations on a committed or rolled back Tx.
var ErrTxDone = errors.New("transaction already finished")

// Tx is one write transaction. It holds the store's writer lock until Commit or Rollback.
type Tx struct {
	ctx    context.Context
	tx     *sql.Tx
	unlock func()
	done   bool
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	return &Tx{ctx: ctx, tx: tx, unlock: sync.OnceFunc(s.mu.Unlock)}, nil
}

// PlaceExists reports whether a place with identityKey is stored.
func (t *Tx) PlaceExists(identityKey string) (bool, error) {
	_, ok, err := t.PlaceID(identityKey)
	return ok, err
}

// PlaceID returns the id stored under identityKey.
func (t *Tx) PlaceID(identityKey string) (int64, bool, error) {
	if t.done {
		return 0, false, ErrTxDone
	}
	var id int64
	err := t.tx.QueryRowContext(t.ctx, "SELECT id FROM places WHERE identity_key = ?", identityKey).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("looking up place: %w", err)
	}
	return id, true, nil
}

// InsertPlace inserts rec and returns its generated id. When another writer stored the same
// identity key first, the existing id is returned with model.Exists.
func (t *Tx) InsertPlace(rec model.PlaceRecord) (int64, model.SaveOutcome, error) {
	if t.done {
		return 0, model.Inserted, ErrTxDone
	}
	if strings.TrimSpace(rec.Name) == "" {
		return 0, model.Inserted, errors.New("place has no name")
	}
	key := model.IdentityKey(rec)

	var lat, lng sql.NullFloat64
	if rec.Coords != nil {
		lat = sql.NullFloat64{Float64: rec.Coords.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Coords.Lng, Valid: true}
	}
	var rating sql.NullFloat64
	if rec.Rating != nil {
		rating = sql.NullFloat64{Float64: *rec.Rating, Valid: true}
	}
	var reviewCount sql.NullInt64
	if rec.ReviewCount != nil {
		reviewCount = sql.NullInt64{Int64: int64(*rec.ReviewCount), Valid: true}
	}

	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO places
		(identity_key, name, address, phone, rating, review_count, category,
		 latitude, longitude, query, source, scraped_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(identity_key) DO NOTHING
	`,
		key, rec.Name, rec.Address, rec.Phone, rating, reviewCount, rec.Category,
		lat, lng, rec.Query, string(rec.Source), formatTime(rec.ScrapedAt),
	)
	if err != nil {
		return 0, model.Inserted, fmt.Errorf("inserting place: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		id, _, err := t.PlaceID(key)
		return id, model.Exists, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, model.Inserted, fmt.Errorf("reading place id: %w", err)
	}
	return id, model.Inserted, nil
}

// InsertReviews appends reviews to placeID in order.
func (t *Tx) InsertReviews(placeID int64, reviews []model.ReviewRecord) error {
	if t.done {
		return ErrTxDone
	}
	if len(reviews) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(t.ctx, `
		INSERT INTO place_reviews (place_id, author, rating, text, date, images, scraped_at)
		VALUES (?,?,?,?,?,?,?)
	`)
	if err != nil {
		return fmt.Errorf("preparing review stmt: %w", err)
	}
	defer stmt.Close()

	for _, r := range reviews {
		var rating sql.NullFloat64
		if r.Rating != nil {
			rating = sql.NullFloat64{Float64: *r.Rating, Valid: true}
		}
		images, err := encodeList(r.Images)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(t.ctx, placeID, r.Author, rating, r.Text, r.Date, images, formatTime(r.ScrapedAt)); err != nil {
			return fmt.Errorf("inserting review: %w", err)
		}
	}
	return nil
}

// InsertMedia stores the image and video lists of placeID. Empty lists are stored as [].
func (t *Tx) InsertMedia(placeID int64, images, videos []string) error {
	if t.done {
		return ErrTxDone
	}
	img, err := encodeList(images)
	if err != nil {
		return err
	}
	vid, err := encodeList(videos)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO place_media (place_id, images, videos) VALUES (?,?,?)
		ON CONFLICT(place_id) DO UPDATE SET images = excluded.images, videos = excluded.videos
	`, placeID, img, vid)
	if err != nil {
		return fmt.Errorf("inserting media: %w", err)
	}
	return nil
}

// InsertCategories links placeID to every named category, creating missing ones.
func (t *Tx) InsertCategories(placeID int64, names []string) error {
	if t.done {
		return ErrTxDone
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := t.tx.ExecContext(t.ctx, "INSERT OR IGNORE INTO categories (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("inserting category: %w", err)
		}
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT OR IGNORE INTO place_categories (place_id, category_id)
			SELECT ?, id FROM categories WHERE name = ?
		`, placeID, name); err != nil {
			return fmt.Errorf("linking category: %w", err)
		}
	}
	return nil
}

func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.unlock()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back tx: %w", err)
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
