package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rendis/placetap/internal/model"
)

// Store is the sqlite persistence gate. Writers are serialized; one place with its reviews,
// media and categories is written in one transaction.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS places (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity_key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL CHECK (length(trim(name)) > 0),
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		rating REAL CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5)),
		review_count INTEGER CHECK (review_count IS NULL OR review_count >= 0),
		category TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		query TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		scraped_at TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK ((latitude IS NULL) = (longitude IS NULL))
	);
	CREATE INDEX IF NOT EXISTS idx_places_category ON places(category);
	CREATE INDEX IF NOT EXISTS idx_places_rating ON places(rating);
	CREATE INDEX IF NOT EXISTS idx_places_coords ON places(latitude, longitude);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS place_categories (
		place_id INTEGER NOT NULL REFERENCES places(id) ON DELETE CASCADE,
		category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (place_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS place_media (
		place_id INTEGER PRIMARY KEY REFERENCES places(id) ON DELETE CASCADE,
		images TEXT NOT NULL DEFAULT '[]',
		videos TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS place_reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		place_id INTEGER NOT NULL REFERENCES places(id) ON DELETE CASCADE,
		author TEXT NOT NULL,
		rating REAL CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5)),
		text TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		images TEXT NOT NULL DEFAULT '[]',
		scraped_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_place ON place_reviews(place_id);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SavePlace persists rec with its reviews, media and category as one logical unit.
// A record whose identity key is already stored is reported as model.Exists and nothing is written.
// On any failure the transaction is rolled back.
func (s *Store) SavePlace(ctx context.Context, rec model.PlaceRecord) (res model.SaveResult, err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	key := model.IdentityKey(rec)
	if id, ok, err := tx.PlaceID(key); err != nil {
		return res, err
	} else if ok {
		return model.SaveResult{ID: id, Outcome: model.Exists}, tx.Commit()
	}

	id, outcome, err := tx.InsertPlace(rec)
	if err != nil {
		return res, err
	}
	if outcome == model.Exists {
		return model.SaveResult{ID: id, Outcome: model.Exists}, tx.Commit()
	}
	if err := tx.InsertReviews(id, rec.Reviews); err != nil {
		return res, err
	}
	if err := tx.InsertMedia(id, rec.Images, rec.Videos); err != nil {
		return res, err
	}
	if rec.Category != "" {
		if err := tx.InsertCategories(id, []string{rec.Category}); err != nil {
			return res, err
		}
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	return model.SaveResult{ID: id, Outcome: model.Inserted}, nil
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM places").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
