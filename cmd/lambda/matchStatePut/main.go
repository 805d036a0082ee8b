package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chess-vn/courtsync/internal/aws/storage"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/chess-vn/courtsync/internal/matchstate"
	"github.com/chess-vn/courtsync/internal/usecases"
	"github.com/jonboulle/clockwork"
)

var (
	matchStateUsecase interfaces.IMatchStateUsecase
	clock             = clockwork.NewRealClock()
	matchIdPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	ErrInvalidMatchId = errors.New("invalid match id")
)

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	tableName := os.Getenv("MATCH_STATES_TABLE_NAME")
	if tableName == "" {
		tableName = "MatchStates"
	}
	matchStateUsecase = usecases.NewMatchStateUsecase(
		storage.NewClient(
			dynamodb.NewFromConfig(cfg),
			storage.Config{MatchStatesTableName: aws.String(tableName)},
		),
		clock,
		usecases.DefaultPersistenceConfig(),
	)
}

// handler seeds the stored snapshot of a match that is not live yet, e.g.
// team names before a fixture starts. The input is repaired before it is
// written, so any shape is accepted.
func handler(ctx context.Context, event map[string]interface{}) (entities.MatchState, error) {
	arguments, _ := event["arguments"].(map[string]interface{})
	matchId, _ := arguments["matchId"].(string)
	if !matchIdPattern.MatchString(matchId) {
		return entities.MatchState{}, ErrInvalidMatchId
	}

	matchState := matchstate.Repair(arguments["input"])
	nowMs := clock.Now().UnixMilli()
	matchState.ServerTime = nowMs
	matchState.LastUpdated = nowMs

	if err := matchStateUsecase.SaveWithRetry(ctx, matchId, matchState); err != nil {
		return entities.MatchState{}, fmt.Errorf("failed to put match state: %w", err)
	}
	return matchState, nil
}

func main() {
	lambda.Start(handler)
}
