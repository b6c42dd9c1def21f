package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore mirrors saved snapshots into PostgreSQL so history can be
// queried per player. The CSV file stays the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL and creates the schema if needed
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Println("Connected to PostgreSQL database")
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id BIGSERIAL PRIMARY KEY,
			batch_id UUID NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL,
			battletag VARCHAR(64) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			gamemode VARCHAR(16) NOT NULL,
			platform VARCHAR(16) NOT NULL DEFAULT '',
			hero VARCHAR(32) NOT NULL,
			games_played DOUBLE PRECISION,
			games_won DOUBLE PRECISION,
			games_lost DOUBLE PRECISION,
			time_played_sec DOUBLE PRECISION,
			eliminations DOUBLE PRECISION,
			deaths DOUBLE PRECISION,
			hero_damage_done DOUBLE PRECISION,
			healing_done DOUBLE PRECISION
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_player ON snapshots(player_id, hero, captured_at);
		CREATE INDEX IF NOT EXISTS idx_snapshots_batch ON snapshots(batch_id);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveSnapshots inserts one save batch. Duplicate batches are kept, same as the file.
func (s *PostgresStore) SaveSnapshots(ctx context.Context, batchID uuid.UUID, rows []Snapshot) error {
	query := `
		INSERT INTO snapshots (batch_id, captured_at, battletag, player_id, gamemode, platform, hero,
		                       games_played, games_won, games_lost, time_played_sec,
		                       eliminations, deaths, hero_damage_done, healing_done)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query,
			batchID,
			r.Timestamp,
			r.Battletag,
			r.PlayerID,
			r.Gamemode,
			r.Platform,
			r.Hero,
			r.GamesPlayed,
			r.GamesWon,
			r.GamesLost,
			r.TimePlayedSec,
			r.Eliminations,
			r.Deaths,
			r.HeroDamageDone,
			r.HealingDone,
		)
	}

	return s.pool.SendBatch(ctx, batch).Close()
}

// History returns a player's snapshots for one hero key, oldest first
func (s *PostgresStore) History(ctx context.Context, playerID, hero string) ([]Snapshot, error) {
	query := `
		SELECT captured_at, battletag, player_id, gamemode, platform, hero,
		       games_played, games_won, games_lost, time_played_sec,
		       eliminations, deaths, hero_damage_done, healing_done
		FROM snapshots
		WHERE player_id = $1 AND hero = $2
		ORDER BY captured_at, id
	`

	rows, err := s.pool.Query(ctx, query, playerID, hero)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		err := rows.Scan(
			&snap.Timestamp,
			&snap.Battletag,
			&snap.PlayerID,
			&snap.Gamemode,
			&snap.Platform,
			&snap.Hero,
			&snap.GamesPlayed,
			&snap.GamesWon,
			&snap.GamesLost,
			&snap.TimePlayedSec,
			&snap.Eliminations,
			&snap.Deaths,
			&snap.HeroDamageDone,
			&snap.HealingDone,
		)
		if err != nil {
			return nil, err
		}
		snap.Timestamp = snap.Timestamp.UTC()
		out = append(out, snap)
	}

	return out, rows.Err()
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
