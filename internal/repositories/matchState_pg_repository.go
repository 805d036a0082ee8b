package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createMatchStatesTable = `
CREATE TABLE IF NOT EXISTS match_states (
	match_id   TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectMatchState = `SELECT state FROM match_states WHERE match_id = $1`

const upsertMatchState = `
INSERT INTO match_states (match_id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (match_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`

type matchStatePgRepository struct {
	pool *pgxpool.Pool
}

func NewMatchStatePgRepository(pool *pgxpool.Pool) interfaces.IMatchStateRepository {
	return &matchStatePgRepository{pool: pool}
}

// EnsureMatchStatesTable creates the backing table if it does not exist yet.
func EnsureMatchStatesTable(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createMatchStatesTable); err != nil {
		return fmt.Errorf("failed to create match_states table: %w", err)
	}
	return nil
}

func (r *matchStatePgRepository) GetMatchState(ctx context.Context, matchId string) (interface{}, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, selectMatchState, matchId).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrMatchStateNotFound
		}
		return nil, fmt.Errorf("failed to query match state: %w", err)
	}
	var raw interface{}
	if err := json.Unmarshal(doc, &raw); err != nil {
		// Undecodable documents are handed to repair as-is.
		return nil, nil
	}
	return raw, nil
}

func (r *matchStatePgRepository) PutMatchState(ctx context.Context, matchId string, state entities.MatchState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal match state: %w", err)
	}
	if _, err := r.pool.Exec(ctx, upsertMatchState, matchId, string(doc)); err != nil {
		return fmt.Errorf("failed to upsert match state: %w", err)
	}
	return nil
}
