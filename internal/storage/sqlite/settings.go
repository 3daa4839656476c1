package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/yegors/superplane/pkg/logger"
)

const (
	searchRadiusKey   = "search_radius_km"
	downloadImagesKey = "download_images"
)

// SettingsStorage persists user settings as key/value rows
type SettingsStorage struct {
	db            *sql.DB
	defaultRadius float64
	logger        *logger.Logger
}

// NewSettingsStorage creates a new SQLite settings storage. defaultRadiusKm is
// written the first time the radius is read.
func NewSettingsStorage(db *sql.DB, defaultRadiusKm float64, log *logger.Logger) (*SettingsStorage, error) {
	storage := &SettingsStorage{
		db:            db,
		defaultRadius: defaultRadiusKm,
		logger:        log.Named("sqlite-settings"),
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return storage, nil
}

// SearchRadiusKm returns the search radius, storing the default if unset
func (s *SettingsStorage) SearchRadiusKm(ctx context.Context) (float64, error) {
	value, err := s.getOrInit(ctx, searchRadiusKey, strconv.FormatFloat(s.defaultRadius, 'f', -1, 64))
	if err != nil {
		return 0, err
	}
	km, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stored search radius %q: %w", value, err)
	}
	return km, nil
}

// SetSearchRadiusKm stores the search radius
func (s *SettingsStorage) SetSearchRadiusKm(ctx context.Context, km float64) error {
	if km <= 0 {
		return fmt.Errorf("search radius must be positive, got %v", km)
	}
	return s.set(ctx, searchRadiusKey, strconv.FormatFloat(km, 'f', -1, 64))
}

// DownloadImages returns whether aircraft images should be fetched, false if unset
func (s *SettingsStorage) DownloadImages(ctx context.Context) (bool, error) {
	value, err := s.getOrInit(ctx, downloadImagesKey, strconv.FormatBool(false))
	if err != nil {
		return false, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid stored download images flag %q: %w", value, err)
	}
	return enabled, nil
}

// SetDownloadImages stores the download images flag
func (s *SettingsStorage) SetDownloadImages(ctx context.Context, enabled bool) error {
	return s.set(ctx, downloadImagesKey, strconv.FormatBool(enabled))
}

func (s *SettingsStorage) getOrInit(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to query setting %s: %w", key, err)
	}

	s.logger.Debug("Initializing setting", logger.String("key", key), logger.String("value", fallback))
	if err := s.set(ctx, key, fallback); err != nil {
		return "", err
	}
	return fallback, nil
}

func (s *SettingsStorage) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}
