package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/internal/position"
	"github.com/yegors/superplane/internal/search"
	"github.com/yegors/superplane/pkg/logger"
)

// HistoryStorage keeps finished search outcomes
type HistoryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewHistoryStorage creates a new SQLite search history storage
func NewHistoryStorage(db *sql.DB, log *logger.Logger) (*HistoryStorage, error) {
	storage := &HistoryStorage{
		db:     db,
		logger: log.Named("sqlite-history"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *HistoryStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			icao TEXT,
			callsign TEXT,
			distance_km REAL,
			aircraft BLOB,
			fix_latitude REAL,
			fix_longitude REAL,
			fix_accuracy REAL,
			fix_source TEXT,
			fix_time TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create search history table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_search_history_finished_at ON search_history(finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_search_history_icao ON search_history(icao)`,
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create search history index: %w", err)
		}
	}

	return nil
}

// RecordOutcome stores a finished search
func (s *HistoryStorage) RecordOutcome(ctx context.Context, o search.Outcome) error {
	var (
		icao, callsign sql.NullString
		distance       sql.NullFloat64
		aircraft       []byte
		lat, lon, acc  sql.NullFloat64
		source, fixAt  sql.NullString
		errText        sql.NullString
	)

	if o.Aircraft != nil {
		data, err := msgpack.Marshal(o.Aircraft)
		if err != nil {
			return fmt.Errorf("failed to encode aircraft: %w", err)
		}
		aircraft = data
		icao = sql.NullString{String: o.Aircraft.ICAO, Valid: true}
		callsign = sql.NullString{String: o.Aircraft.Callsign, Valid: true}
		distance = sql.NullFloat64{Float64: o.DistanceKm, Valid: true}
	}
	if o.Fix != nil {
		lat = sql.NullFloat64{Float64: o.Fix.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: o.Fix.Longitude, Valid: true}
		acc = sql.NullFloat64{Float64: o.Fix.Accuracy, Valid: true}
		source = sql.NullString{String: o.Fix.Source, Valid: true}
		fixAt = sql.NullString{String: formatTime(o.Fix.Time), Valid: true}
	}
	if o.Error != "" {
		errText = sql.NullString{String: o.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history
		(task_id, kind, icao, callsign, distance_km, aircraft, fix_latitude, fix_longitude, fix_accuracy, fix_source, fix_time, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.TaskID,
		o.Kind.String(),
		icao,
		callsign,
		distance,
		aircraft,
		lat,
		lon,
		acc,
		source,
		fixAt,
		errText,
		formatTime(o.StartedAt),
		formatTime(o.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search outcome: %w", err)
	}

	s.logger.Debug("Search outcome recorded",
		logger.String("task_id", o.TaskID),
		logger.String("outcome", o.Kind.String()))

	return nil
}

// GetRecentOutcomes returns up to limit outcomes, newest first
func (s *HistoryStorage) GetRecentOutcomes(ctx context.Context, limit int) ([]search.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, kind, distance_km, aircraft, fix_latitude, fix_longitude, fix_accuracy, fix_source, fix_time, error, started_at, finished_at
		FROM search_history
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	return s.scanHistoryRows(rows)
}

func (s *HistoryStorage) scanHistoryRows(rows *sql.Rows) ([]search.Outcome, error) {
	outcomes := []search.Outcome{}

	for rows.Next() {
		var (
			o                    search.Outcome
			kind                 string
			distance             sql.NullFloat64
			aircraft             []byte
			lat, lon, acc        sql.NullFloat64
			source, fixAt, errTx sql.NullString
			startedAt, finished  string
		)
		err := rows.Scan(&o.TaskID, &kind, &distance, &aircraft, &lat, &lon, &acc, &source, &fixAt, &errTx, &startedAt, &finished)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search history row: %w", err)
		}

		if o.Kind, err = search.ParseOutcomeKind(kind); err != nil {
			return nil, err
		}
		if len(aircraft) > 0 {
			var c adsb.Candidate
			if err := msgpack.Unmarshal(aircraft, &c); err != nil {
				return nil, fmt.Errorf("failed to decode aircraft for task %s: %w", o.TaskID, err)
			}
			o.Aircraft = &c
		}
		o.DistanceKm = distance.Float64
		if lat.Valid && lon.Valid {
			fix := position.Fix{Latitude: lat.Float64, Longitude: lon.Float64, Accuracy: acc.Float64, Source: source.String}
			if fixAt.Valid {
				if fix.Time, err = parseTime(fixAt.String); err != nil {
					return nil, err
				}
			}
			o.Fix = &fix
		}
		if o.Aircraft != nil && o.Fix != nil {
			o.BearingDeg = adsb.BearingDeg(o.Fix.Latitude, o.Fix.Longitude, o.Aircraft.Latitude, o.Aircraft.Longitude)
		}
		o.Error = errTx.String
		if o.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if o.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}

		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search history rows: %w", err)
	}

	return outcomes, nil
}
