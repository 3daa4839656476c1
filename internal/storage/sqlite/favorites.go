package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/pkg/logger"
)

// ErrFavoriteNotFound is returned when removing an aircraft that is not a favorite
var ErrFavoriteNotFound = errors.New("favorite not found")

// FavoriteRecord is a saved aircraft snapshot
type FavoriteRecord struct {
	Key       string         `json:"key"`
	Aircraft  adsb.Candidate `json:"aircraft"`
	CreatedAt time.Time      `json:"created_at"`
}

// FavoritesStorage handles storage of favorite aircraft
type FavoritesStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewFavoritesStorage creates a new SQLite favorites storage
func NewFavoritesStorage(db *sql.DB, log *logger.Logger) (*FavoritesStorage, error) {
	storage := &FavoritesStorage{
		db:     db,
		logger: log.Named("sqlite-favs"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *FavoritesStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			key TEXT PRIMARY KEY,
			icao TEXT,
			callsign TEXT,
			registration TEXT,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create favorites table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_favorites_created_at ON favorites(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create favorites index: %w", err)
	}

	return nil
}

// AddFavorite saves a snapshot of the aircraft. Saving the same aircraft
// again replaces the snapshot and keeps the original creation time.
func (s *FavoritesStorage) AddFavorite(ctx context.Context, aircraft adsb.Candidate) (*FavoriteRecord, error) {
	key := aircraft.Key()
	if key == "" {
		return nil, errors.New("aircraft has neither an ICAO address nor an id")
	}

	data, err := msgpack.Marshal(&aircraft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode favorite: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO favorites (key, icao, callsign, registration, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			icao = excluded.icao,
			callsign = excluded.callsign,
			registration = excluded.registration,
			data = excluded.data`,
		key,
		aircraft.ICAO,
		aircraft.Callsign,
		aircraft.Registration,
		data,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert favorite: %w", err)
	}

	s.logger.Debug("Favorite saved",
		logger.String("key", key),
		logger.String("callsign", aircraft.Callsign))

	return s.GetFavorite(ctx, key)
}

// RemoveFavorite deletes the favorite stored under key
func (s *FavoritesStorage) RemoveFavorite(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrFavoriteNotFound
	}

	return nil
}

// FavoriteExists reports whether the aircraft is a favorite
func (s *FavoritesStorage) FavoriteExists(ctx context.Context, aircraft adsb.Candidate) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM favorites WHERE key = ?`, aircraft.Key()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query favorite: %w", err)
	}
	return true, nil
}

// GetFavorite returns the favorite stored under key
func (s *FavoritesStorage) GetFavorite(ctx context.Context, key string) (*FavoriteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data, created_at FROM favorites WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite: %w", err)
	}
	defer rows.Close()

	records, err := s.scanFavoriteRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrFavoriteNotFound
	}
	return records[0], nil
}

// GetFavorites returns all favorites, oldest first
func (s *FavoritesStorage) GetFavorites(ctx context.Context) ([]*FavoriteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data, created_at FROM favorites ORDER BY created_at ASC, key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	return s.scanFavoriteRows(rows)
}

func (s *FavoritesStorage) scanFavoriteRows(rows *sql.Rows) ([]*FavoriteRecord, error) {
	var records []*FavoriteRecord

	for rows.Next() {
		var (
			record    FavoriteRecord
			data      []byte
			createdAt string
		)
		if err := rows.Scan(&record.Key, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite row: %w", err)
		}

		if err := msgpack.Unmarshal(data, &record.Aircraft); err != nil {
			// Skip corrupt snapshots
			s.logger.Warn("Skipping undecodable favorite",
				logger.String("key", record.Key),
				logger.Error(err))
			continue
		}

		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		record.CreatedAt = t

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite rows: %w", err)
	}

	return records, nil
}
