package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS saved_games (
	user_id    TEXT PRIMARY KEY,
	document   JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps saved games as JSONB documents, one row per user.
type PostgresStore struct {
	pool   *pgxpool.Pool
	userID string
	logger *zap.Logger
}

// NewPostgresStore connects to databaseURL and ensures the table exists.
func NewPostgresStore(ctx context.Context, databaseURL, userID string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userID == "" {
		return nil, fmt.Errorf("postgres store requires a user id")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create saved_games: %w", err)
	}
	logger.Info("progress store connected", zap.String("user_id", userID))
	return &PostgresStore{pool: pool, userID: userID, logger: logger}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (SavedGame, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT document FROM saved_games WHERE user_id = $1", s.userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedGame{}, false, nil
	}
	if err != nil {
		return SavedGame{}, false, fmt.Errorf("failed to load saved game: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SavedGame{}, false, fmt.Errorf("failed to decode saved game: %w", err)
	}
	return Sanitize(doc), true, nil
}

// Save replaces the document, keeping a stored checkpoint.
func (s *PostgresStore) Save(ctx context.Context, game SavedGame) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to encode saved game: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO saved_games (user_id, document, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET document = EXCLUDED.document ||
			jsonb_strip_nulls(jsonb_build_object('checkpoint', saved_games.document->'checkpoint')),
			updated_at = NOW()`,
		s.userID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

// Patch merges fields into the document in one transaction. Nil values and
// $unset entries remove keys.
func (s *PostgresStore) Patch(ctx context.Context, fields map[string]any) error {
	set := make(map[string]any, len(fields))
	var remove []string
	for k, v := range fields {
		switch {
		case k == "$unset":
			if m, ok := v.(map[string]any); ok {
				for f := range m {
					remove = append(remove, f)
				}
			}
		case v == nil:
			remove = append(remove, k)
		default:
			set[k] = v
		}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin patch: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO saved_games (user_id, document, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET document = saved_games.document || EXCLUDED.document, updated_at = NOW()`,
		s.userID, string(data)); err != nil {
		return fmt.Errorf("failed to patch saved game: %w", err)
	}
	if len(remove) > 0 {
		if _, err := tx.Exec(ctx,
			"UPDATE saved_games SET document = document - $2::text[] WHERE user_id = $1",
			s.userID, remove); err != nil {
			return fmt.Errorf("failed to remove saved game keys: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit patch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearCheckpoint(ctx context.Context) error {
	return s.Patch(ctx, map[string]any{"checkpoint": nil})
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
