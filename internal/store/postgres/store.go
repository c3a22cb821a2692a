// Package postgres provides PostgreSQL persistence for observations and
// predictions, for deployments where several analyzer instances share a
// database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	connectTimeout  = 5 * time.Second
)

// Store handles PostgreSQL persistence.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL using a connection URL, verifies the
// connection, and creates the schema if needed.
func Open(databaseURL string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("postgres store ready",
		"max_open_conns", maxOpenConns,
		"max_idle_conns", maxIdleConns,
	)

	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		wave_height DOUBLE PRECISION,
		wind_speed DOUBLE PRECISION,
		wind_direction DOUBLE PRECISION,
		current_speed DOUBLE PRECISION,
		sea_surface_temp DOUBLE PRECISION,
		pressure DOUBLE PRECISION,
		tsunami_warning BOOLEAN NOT NULL DEFAULT FALSE,
		cyclone_active BOOLEAN NOT NULL DEFAULT FALSE,
		ingested_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_observations_time ON observations (timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_observations_box ON observations (latitude, longitude, timestamp);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		location_name TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		hazard TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		method TEXT NOT NULL,
		time_to_hazard_hours DOUBLE PRECISION NOT NULL,
		early_warning BOOLEAN NOT NULL DEFAULT FALSE,
		indicators JSONB,
		reason TEXT,
		conditions JSONB,
		label_scores JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_location ON predictions (location_id, created_at DESC);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// observationRow is the database shape of an observation.
type observationRow struct {
	ID             string          `db:"id"`
	LocationID     string          `db:"location_id"`
	Latitude       float64         `db:"latitude"`
	Longitude      float64         `db:"longitude"`
	Timestamp      time.Time       `db:"timestamp"`
	WaveHeight     sql.NullFloat64 `db:"wave_height"`
	WindSpeed      sql.NullFloat64 `db:"wind_speed"`
	WindDirection  sql.NullFloat64 `db:"wind_direction"`
	CurrentSpeed   sql.NullFloat64 `db:"current_speed"`
	SeaSurfaceTemp sql.NullFloat64 `db:"sea_surface_temp"`
	Pressure       sql.NullFloat64 `db:"pressure"`
	TsunamiWarning bool            `db:"tsunami_warning"`
	CycloneActive  bool            `db:"cyclone_active"`
	IngestedAt     time.Time       `db:"ingested_at"`
}

func (r observationRow) toDomain() domain.Observation {
	return domain.Observation{
		ID:             r.ID,
		LocationID:     r.LocationID,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		Timestamp:      r.Timestamp,
		WaveHeight:     nullableFloat(r.WaveHeight),
		WindSpeed:      nullableFloat(r.WindSpeed),
		WindDirection:  nullableFloat(r.WindDirection),
		CurrentSpeed:   nullableFloat(r.CurrentSpeed),
		SeaSurfaceTemp: nullableFloat(r.SeaSurfaceTemp),
		Pressure:       nullableFloat(r.Pressure),
		TsunamiWarning: r.TsunamiWarning,
		CycloneActive:  r.CycloneActive,
		IngestedAt:     r.IngestedAt,
	}
}

// predictionRow is the database shape of a prediction. JSONB columns are
// carried as raw bytes and decoded in toDomain.
type predictionRow struct {
	ID                string    `db:"id"`
	LocationID        string    `db:"location_id"`
	LocationName      string    `db:"location_name"`
	Latitude          float64   `db:"latitude"`
	Longitude         float64   `db:"longitude"`
	Hazard            string    `db:"hazard"`
	Severity          string    `db:"severity"`
	Confidence        float64   `db:"confidence"`
	Method            string    `db:"method"`
	TimeToHazardHours float64   `db:"time_to_hazard_hours"`
	EarlyWarning      bool      `db:"early_warning"`
	Indicators        []byte    `db:"indicators"`
	Reason            string    `db:"reason"`
	Conditions        []byte    `db:"conditions"`
	LabelScores       []byte    `db:"label_scores"`
	CreatedAt         time.Time `db:"created_at"`
}

func (r predictionRow) toDomain() (domain.Prediction, error) {
	p := domain.Prediction{
		ID:                r.ID,
		LocationID:        r.LocationID,
		LocationName:      r.LocationName,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		Hazard:            domain.HazardType(r.Hazard),
		Severity:          domain.Severity(r.Severity),
		Confidence:        r.Confidence,
		Method:            domain.PredictionMethod(r.Method),
		TimeToHazardHours: r.TimeToHazardHours,
		EarlyWarning:      r.EarlyWarning,
		Reason:            r.Reason,
		CreatedAt:         r.CreatedAt,
	}
	if len(r.Indicators) > 0 {
		if err := json.Unmarshal(r.Indicators, &p.Indicators); err != nil {
			return domain.Prediction{}, fmt.Errorf("failed to decode indicators: %w", err)
		}
	}
	if len(r.Conditions) > 0 {
		if err := json.Unmarshal(r.Conditions, &p.Conditions); err != nil {
			return domain.Prediction{}, fmt.Errorf("failed to decode conditions: %w", err)
		}
	}
	if len(r.LabelScores) > 0 {
		if err := json.Unmarshal(r.LabelScores, &p.LabelScores); err != nil {
			return domain.Prediction{}, fmt.Errorf("failed to decode label scores: %w", err)
		}
	}
	return p, nil
}

// AppendObservations stores observations in a single transaction,
// returning the count of new rows. Duplicates are ignored by
// deterministic observation ID.
func (s *Store) AppendObservations(ctx context.Context, observations []domain.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (
			id, location_id, latitude, longitude, timestamp,
			wave_height, wind_speed, wind_direction, current_speed,
			sea_surface_temp, pressure, tsunami_warning, cyclone_active,
			ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
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
			obs.TsunamiWarning,
			obs.CycloneActive,
			obs.IngestedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert observation: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count affected rows: %w", err)
		}
		if affected > 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("observations appended",
		"total", len(observations),
		"new", newCount,
	)

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
	query := `
		SELECT id, location_id, latitude, longitude, timestamp,
		       wave_height, wind_speed, wind_direction, current_speed,
		       sea_surface_temp, pressure, tsunami_warning, cyclone_active,
		       ingested_at
		FROM observations
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND timestamp >= $5
		ORDER BY timestamp ASC
	`

	var rows []observationRow
	err := s.db.SelectContext(ctx, &rows, query,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query observations in box: %w", err)
	}

	return observationsFromRows(rows), nil
}

// RecentObservations returns the newest observations regardless of
// position, newest first, capped at limit.
func (s *Store) RecentObservations(ctx context.Context, since time.Time, limit int) ([]domain.Observation, error) {
	query := `
		SELECT id, location_id, latitude, longitude, timestamp,
		       wave_height, wind_speed, wind_direction, current_speed,
		       sea_surface_temp, pressure, tsunami_warning, cyclone_active,
		       ingested_at
		FROM observations
		WHERE timestamp >= $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	var rows []observationRow
	if err := s.db.SelectContext(ctx, &rows, query, since.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to query recent observations: %w", err)
	}

	return observationsFromRows(rows), nil
}

// SavePrediction stores a prediction. Duplicate IDs are ignored so that
// re-running analysis over unchanged data does not add rows.
func (s *Store) SavePrediction(ctx context.Context, p domain.Prediction) error {
	indicators, err := json.Marshal(p.Indicators)
	if err != nil {
		return fmt.Errorf("failed to encode indicators: %w", err)
	}
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	labelScores, err := json.Marshal(p.LabelScores)
	if err != nil {
		return fmt.Errorf("failed to encode label scores: %w", err)
	}

	query := `
		INSERT INTO predictions (
			id, location_id, location_name, latitude, longitude,
			hazard, severity, confidence, method,
			time_to_hazard_hours, early_warning, indicators, reason,
			conditions, label_scores, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = s.db.ExecContext(ctx, query,
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
		p.EarlyWarning,
		string(indicators),
		p.Reason,
		string(conditions),
		string(labelScores),
		p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// LatestPredictions returns the most recent prediction per location,
// ordered by location ID.
func (s *Store) LatestPredictions(ctx context.Context) ([]domain.Prediction, error) {
	query := `
		SELECT DISTINCT ON (location_id)
		       id, location_id, location_name, latitude, longitude,
		       hazard, severity, confidence, method,
		       time_to_hazard_hours, early_warning, indicators, reason,
		       conditions, label_scores, created_at
		FROM predictions
		ORDER BY location_id, created_at DESC, id
	`

	var rows []predictionRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query latest predictions: %w", err)
	}

	return predictionsFromRows(rows)
}

// RecentPredictions returns the newest predictions across all locations.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error) {
	query := `
		SELECT id, location_id, location_name, latitude, longitude,
		       hazard, severity, confidence, method,
		       time_to_hazard_hours, early_warning, indicators, reason,
		       conditions, label_scores, created_at
		FROM predictions
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	var rows []predictionRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query recent predictions: %w", err)
	}

	return predictionsFromRows(rows)
}

// PredictionsForLocation returns predictions for one location, newest first.
func (s *Store) PredictionsForLocation(ctx context.Context, locationID string, limit int) ([]domain.Prediction, error) {
	query := `
		SELECT id, location_id, location_name, latitude, longitude,
		       hazard, severity, confidence, method,
		       time_to_hazard_hours, early_warning, indicators, reason,
		       conditions, label_scores, created_at
		FROM predictions
		WHERE location_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	var rows []predictionRow
	if err := s.db.SelectContext(ctx, &rows, query, locationID, limit); err != nil {
		return nil, fmt.Errorf("failed to query predictions for location: %w", err)
	}

	return predictionsFromRows(rows)
}

func observationsFromRows(rows []observationRow) []domain.Observation {
	observations := make([]domain.Observation, 0, len(rows))
	for _, r := range rows {
		observations = append(observations, r.toDomain())
	}
	return observations
}

func predictionsFromRows(rows []predictionRow) ([]domain.Prediction, error) {
	predictions := make([]domain.Prediction, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
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
