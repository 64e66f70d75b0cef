package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/placetap/internal/model"
)

// ErrNotFound is returned when a place id is not stored.
var ErrNotFound = errors.New("place not found")

// Filter narrows Places. Zero fields match everything.
type Filter struct {
	Category  string  // substring of the place category or any linked category
	Location  string  // substring of the address
	Text      string  // substring of the name or phone
	MinRating float64 // places without a rating are excluded when set
	Limit     int
	Offset    int
}

const placeColumns = `id, name, address, phone, rating, review_count, category,
	latitude, longitude, query, source, scraped_at`

// Places returns stored places matching f, best rated first, with reviews and media attached.
func (s *Store) Places(ctx context.Context, f Filter) ([]model.StoredPlace, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, `(category LIKE ? OR EXISTS (
			SELECT 1 FROM place_categories pc JOIN categories c ON c.id = pc.category_id
			WHERE pc.place_id = places.id AND c.name LIKE ?))`)
		args = append(args, like(f.Category), like(f.Category))
	}
	if f.Location != "" {
		where = append(where, "address LIKE ?")
		args = append(args, like(f.Location))
	}
	if f.Text != "" {
		where = append(where, "(name LIKE ? OR phone LIKE ?)")
		args = append(args, like(f.Text), like(f.Text))
	}
	if f.MinRating > 0 {
		where = append(where, "rating >= ?")
		args = append(args, f.MinRating)
	}

	q := "SELECT " + placeColumns + " FROM places"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY rating IS NULL, rating DESC, review_count DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying places: %w", err)
	}
	places, err := scanPlaces(rows)
	if err != nil {
		return nil, err
	}
	for i := range places {
		if err := s.attach(ctx, &places[i]); err != nil {
			return nil, err
		}
	}
	return places, nil
}

// ByCategory returns places whose category matches name.
func (s *Store) ByCategory(ctx context.Context, name string) ([]model.StoredPlace, error) {
	return s.Places(ctx, Filter{Category: name})
}

// ByLocation returns places whose address contains location.
func (s *Store) ByLocation(ctx context.Context, location string) ([]model.StoredPlace, error) {
	return s.Places(ctx, Filter{Location: location})
}

// ByMinRating returns places rated at least min.
func (s *Store) ByMinRating(ctx context.Context, min float64) ([]model.StoredPlace, error) {
	return s.Places(ctx, Filter{MinRating: min})
}

// Place returns one stored place by id.
func (s *Store) Place(ctx context.Context, id int64) (*model.StoredPlace, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+placeColumns+" FROM places WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying place: %w", err)
	}
	places, err := scanPlaces(rows)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}
	if err := s.attach(ctx, &places[0]); err != nil {
		return nil, err
	}
	return &places[0], nil
}

// Reviews returns the reviews of placeID in insertion order.
func (s *Store) Reviews(ctx context.Context, placeID int64) ([]model.ReviewRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT author, rating, text, date, images, scraped_at
		FROM place_reviews WHERE place_id = ? ORDER BY id
	`, placeID)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	reviews := []model.ReviewRecord{}
	for rows.Next() {
		var (
			r          model.ReviewRecord
			rating     sql.NullFloat64
			images, ts string
		)
		if err := rows.Scan(&r.Author, &rating, &r.Text, &r.Date, &images, &ts); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		if rating.Valid {
			r.Rating = model.Float(rating.Float64)
		}
		r.Images = decodeList(images)
		r.ScrapedAt = parseTime(ts)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// Media returns the image and video URLs of placeID. Missing rows yield empty lists.
func (s *Store) Media(ctx context.Context, placeID int64) (images, videos []string, err error) {
	var img, vid string
	err = s.db.QueryRowContext(ctx, "SELECT images, videos FROM place_media WHERE place_id = ?", placeID).Scan(&img, &vid)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, []string{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying media: %w", err)
	}
	return decodeList(img), decodeList(vid), nil
}

// Categories lists every known category name alphabetically.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) attach(ctx context.Context, p *model.StoredPlace) error {
	var err error
	if p.Images, p.Videos, err = s.Media(ctx, p.ID); err != nil {
		return err
	}
	p.Reviews, err = s.Reviews(ctx, p.ID)
	return err
}

func scanPlaces(rows *sql.Rows) ([]model.StoredPlace, error) {
	defer rows.Close()

	var places []model.StoredPlace
	for rows.Next() {
		var (
			p           model.StoredPlace
			rating      sql.NullFloat64
			reviewCount sql.NullInt64
			lat, lng    sql.NullFloat64
			source, ts  string
		)
		err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &rating, &reviewCount, &p.Category,
			&lat, &lng, &p.Query, &source, &ts)
		if err != nil {
			return nil, fmt.Errorf("scanning place: %w", err)
		}
		if rating.Valid {
			p.Rating = model.Float(rating.Float64)
		}
		if reviewCount.Valid {
			p.ReviewCount = model.Int(int(reviewCount.Int64))
		}
		if lat.Valid && lng.Valid {
			p.Coords = &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		p.Source = model.Source(source)
		p.ScrapedAt = parseTime(ts)
		places = append(places, p)
	}
	return places, rows.Err()
}

func like(s string) string {
	return "%" + strings.TrimSpace(s) + "%"
}
