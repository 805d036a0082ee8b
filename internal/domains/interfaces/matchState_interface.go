package interfaces

import (
	"context"
	"errors"

	"github.com/chess-vn/courtsync/internal/domains/entities"
)

var ErrMatchStateNotFound = errors.New("match state not found")

type (
	// IMatchStateRepository stores one document per match id. GetMatchState
	// returns the document as loosely decoded JSON; callers must repair it.
	IMatchStateRepository interface {
		GetMatchState(ctx context.Context, matchId string) (interface{}, error)
		PutMatchState(ctx context.Context, matchId string, state entities.MatchState) error
	}

	IMatchStateUsecase interface {
		Load(ctx context.Context, matchId string) (entities.MatchState, error)
		Save(ctx context.Context, matchId string, state entities.MatchState) error
		SaveWithRetry(ctx context.Context, matchId string, state entities.MatchState) error
	}
)
