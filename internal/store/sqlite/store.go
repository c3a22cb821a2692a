// Package sqlite provides embedded persistence for observations and
// predictions, suitable for single-node deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

// Store handles SQLite persistence. Concrete type, not an interface.
// All methods are safe for concurrent use via an internal mutex; writes
// are serialized so the embedded engine never sees competing writers.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a Store backed by the database at dbPath, creating tables
// if they don't exist. WAL mode is enabled for file-based databases.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		wave_height REAL,
		wind_speed REAL,
		wind_direction REAL,
		current_speed REAL,
		sea_surface_temp REAL,
		pressure REAL,
		tsunami_warning INTEGER NOT NULL DEFAULT 0,
		cyclone_active INTEGER NOT NULL DEFAULT 0,
		ingested_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_observations_time ON observations(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_observations_box ON observations(latitude, longitude, timestamp);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		location_name TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		hazard TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		time_to_hazard_hours REAL NOT NULL,
		early_warning INTEGER NOT NULL DEFAULT 0,
		indicators TEXT,
		reason TEXT,
		conditions TEXT,
		label_scores TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_location ON predictions(location_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.PingContext(ctx)
}

// AppendObservations stores observations, returning the count of new rows.
// Duplicates are ignored by deterministic observation ID, so re-ingesting
// the same readings is idempotent.
func (s *Store) AppendObservations(ctx context.Context, observations []domain.Observation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(observations) == 0 {
		return 0, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT OR IGNORE INTO observations (
			id, location_id, latitude, longitude, timestamp,
			wave_height, wind_speed, wind_direction, current_speed,
			sea_surface_temp, pressure, tsunami_warning, cyclone_active,
			ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	newCount := 0
	for _, obs := range observations {
		result, err := stmt.ExecContext(ctx,
			obs.ID,
			obs.LocationID,
			obs.Latitude,
			obs.Longitude,
			obs.Timestamp.UTC(),
			obs.WaveHeight,
			obs.WindSpeed,
			obs.WindDirection,
			obs.CurrentSpeed,
			obs.SeaSurfaceTemp,
			obs.Pressure,
			boolToInt(obs.TsunamiWarning),
			boolToInt(obs.CycloneActive),
			obs.IngestedAt.UTC(),
		)
		if err != nil {
			return newCount, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return newCount, err
		}
		if affected > 0 {
			newCount++
		}
	}

	return newCount, nil
}

// AppendObservation stores a single observation, ignoring duplicates.
func (s *Store) AppendObservation(ctx context.Context, obs domain.Observation) error {
	_, err := s.AppendObservations(ctx, []domain.Observation{obs})
	return err
}

// ObservationsInBox returns observations inside the bounding box with
// timestamps at or after since, ordered oldest first.
func (s *Store) ObservationsInBox(ctx context.Context, box domain.Box, since time.Time) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, location_id, latitude, longitude, timestamp,
			wave_height, wind_speed, wind_direction, current_speed,
			sea_surface_temp, pressure, tsunami_warning, cyclone_active,
			ingested_at
		FROM observations
		WHERE latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
		  AND timestamp >= ?
		ORDER BY timestamp ASC
	`

	return s.queryObservations(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, since.UTC())
}

// RecentObservations returns the newest observations regardless of
// position, newest first, capped at limit.
func (s *Store) RecentObservations(ctx context.Context, since time.Time, limit int) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, location_id, latitude, longitude, timestamp,
			wave_height, wind_speed, wind_direction, current_speed,
			sea_surface_temp, pressure, tsunami_warning, cyclone_active,
			ingested_at
		FROM observations
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	return s.queryObservations(ctx, query, since.UTC(), limit)
}

// queryObservations executes a query and scans results into domain
// observations. Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		var (
			obs                      domain.Observation
			wave, wind, dir, current sql.NullFloat64
			sst, pressure            sql.NullFloat64
			tsunamiInt, cycloneInt   int
		)
		err := rows.Scan(
			&obs.ID,
			&obs.LocationID,
			&obs.Latitude,
			&obs.Longitude,
			&obs.Timestamp,
			&wave,
			&wind,
			&dir,
			&current,
			&sst,
			&pressure,
			&tsunamiInt,
			&cycloneInt,
			&obs.IngestedAt,
		)
		if err != nil {
			return nil, err
		}
		obs.WaveHeight = nullableFloat(wave)
		obs.WindSpeed = nullableFloat(wind)
		obs.WindDirection = nullableFloat(dir)
		obs.CurrentSpeed = nullableFloat(current)
		obs.SeaSurfaceTemp = nullableFloat(sst)
		obs.Pressure = nullableFloat(pressure)
		obs.TsunamiWarning = tsunamiInt != 0
		obs.CycloneActive = cycloneInt != 0
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return observations, nil
}

// SavePrediction stores a prediction. Duplicate IDs are ignored so that
// re-running analysis over unchanged data does not add rows.
func (s *Store) SavePrediction(ctx context.Context, p domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indicators, err := json.Marshal(p.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	labelScores, err := json.Marshal(p.LabelScores)
	if err != nil {
		return fmt.Errorf("marshal label scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO predictions (
			id, location_id, location_name, latitude, longitude,
			hazard, severity, confidence, method,
			time_to_hazard_hours, early_warning, indicators, reason,
			conditions, label_scores, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.LocationID,
		p.LocationName,
		p.Latitude,
		p.Longitude,
		string(p.Hazard),
		string(p.Severity),
		p.Confidence,
		string(p.Method),
		p.TimeToHazardHours,
		boolToInt(p.EarlyWarning),
		string(indicators),
		p.Reason,
		string(conditions),
		string(labelScores),
		p.CreatedAt.UTC(),
	)
	return err
}

// LatestPredictions returns the most recent prediction per location,
// ordered by location ID.
func (s *Store) LatestPredictions(ctx context.Context) ([]domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, location_id, location_name, latitude, longitude,
			hazard, severity, confidence, method,
			time_to_hazard_hours, early_warning, indicators, reason,
			conditions, label_scores, created_at
		FROM predictions p
		WHERE p.id = (
			SELECT id FROM predictions
			WHERE location_id = p.location_id
			ORDER BY created_at DESC, id
			LIMIT 1
		)
		ORDER BY p.location_id
	`

	return s.queryPredictions(ctx, query)
}

// RecentPredictions returns the newest predictions across all locations.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, location_id, location_name, latitude, longitude,
			hazard, severity, confidence, method,
			time_to_hazard_hours, early_warning, indicators, reason,
			conditions, label_scores, created_at
		FROM predictions
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	return s.queryPredictions(ctx, query, limit)
}

// PredictionsForLocation returns predictions for one location, newest first.
func (s *Store) PredictionsForLocation(ctx context.Context, locationID string, limit int) ([]domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, location_id, location_name, latitude, longitude,
			hazard, severity, confidence, method,
			time_to_hazard_hours, early_warning, indicators, reason,
			conditions, label_scores, created_at
		FROM predictions
		WHERE location_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	return s.queryPredictions(ctx, query, locationID, limit)
}

// queryPredictions executes a query and scans results into domain
// predictions. Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryPredictions(ctx context.Context, query string, args ...any) ([]domain.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []domain.Prediction
	for rows.Next() {
		var (
			p                                   domain.Prediction
			hazard, severity, method            string
			earlyInt                            int
			indicators, conditions, labelScores []byte
		)
		err := rows.Scan(
			&p.ID,
			&p.LocationID,
			&p.LocationName,
			&p.Latitude,
			&p.Longitude,
			&hazard,
			&severity,
			&p.Confidence,
			&method,
			&p.TimeToHazardHours,
			&earlyInt,
			&indicators,
			&p.Reason,
			&conditions,
			&labelScores,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.Hazard = domain.HazardType(hazard)
		p.Severity = domain.Severity(severity)
		p.Method = domain.PredictionMethod(method)
		p.EarlyWarning = earlyInt != 0
		if err := json.Unmarshal(indicators, &p.Indicators); err != nil {
			return nil, fmt.Errorf("unmarshal indicators: %w", err)
		}
		if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
		if err := json.Unmarshal(labelScores, &p.LabelScores); err != nil {
			return nil, fmt.Errorf("unmarshal label scores: %w", err)
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return predictions, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
