package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/chess-vn/courtsync/internal/matchstate"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrPersistenceExhausted = errors.New("persistence retries exhausted")

type PersistenceConfig struct {
	SaveAttempts int
	MaxBackoff   time.Duration
}

func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		SaveAttempts: 3,
		MaxBackoff:   2 * time.Second,
	}
}

type MatchStateUsecase struct {
	repo    interfaces.IMatchStateRepository
	clock   clockwork.Clock
	cfg     PersistenceConfig
	backoff *retry.ExponentialJitterBackoff
}

func NewMatchStateUsecase(
	repo interfaces.IMatchStateRepository,
	clock clockwork.Clock,
	cfg PersistenceConfig,
) *MatchStateUsecase {
	if cfg.SaveAttempts < 1 {
		cfg.SaveAttempts = 1
	}
	return &MatchStateUsecase{
		repo:    repo,
		clock:   clock,
		cfg:     cfg,
		backoff: retry.NewExponentialJitterBackoff(cfg.MaxBackoff),
	}
}

var _ interfaces.IMatchStateUsecase = (*MatchStateUsecase)(nil)

// Load reads and repairs the persisted snapshot of a match. An absent
// document yields the defaults; a corrupt one is repaired, never surfaced.
func (u *MatchStateUsecase) Load(ctx context.Context, matchId string) (entities.MatchState, error) {
	nowMs := u.clock.Now().UnixMilli()

	raw, err := u.repo.GetMatchState(ctx, matchId)
	if err != nil {
		if errors.Is(err, interfaces.ErrMatchStateNotFound) {
			logging.Info("match initialized", zap.String("match_id", matchId))
			return matchstate.Defaults(nowMs), nil
		}
		return entities.MatchState{}, fmt.Errorf("failed to get match state: %w", err)
	}

	if !matchstate.Validate(raw) {
		logging.Warn("repairing persisted match state", zap.String("match_id", matchId))
	}
	state := matchstate.Repair(raw)
	if state.ServerTime == 0 {
		state.ServerTime = nowMs
	}
	if state.LastUpdated == 0 {
		state.LastUpdated = nowMs
	}
	logging.Info("match resumed", zap.String("match_id", matchId))
	return state, nil
}

func (u *MatchStateUsecase) Save(ctx context.Context, matchId string, state entities.MatchState) error {
	return u.repo.PutMatchState(ctx, matchId, state)
}

// SaveWithRetry retries Save with exponential jitter backoff. Exhaustion
// returns an error wrapping both ErrPersistenceExhausted and the last
// storage error.
func (u *MatchStateUsecase) SaveWithRetry(ctx context.Context, matchId string, state entities.MatchState) error {
	var err error
	for attempt := 1; attempt <= u.cfg.SaveAttempts; attempt++ {
		if err = u.Save(ctx, matchId, state); err == nil {
			return nil
		}
		logging.Warn("failed to save match state",
			zap.String("match_id", matchId),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == u.cfg.SaveAttempts {
			break
		}
		delay, derr := u.backoff.BackoffDelay(attempt, err)
		if derr != nil {
			delay = u.cfg.MaxBackoff
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrPersistenceExhausted, ctx.Err())
		case <-u.clock.After(delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrPersistenceExhausted, u.cfg.SaveAttempts, err)
}
