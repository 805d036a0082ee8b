package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chess-vn/courtsync/internal/aws/storage"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/chess-vn/courtsync/internal/usecases"
	"github.com/jonboulle/clockwork"
)

var (
	matchStateUsecase interfaces.IMatchStateUsecase
	matchIdPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	tableName := os.Getenv("MATCH_STATES_TABLE_NAME")
	if tableName == "" {
		tableName = "MatchStates"
	}
	storageClient := storage.NewClient(
		dynamodb.NewFromConfig(cfg),
		storage.Config{MatchStatesTableName: aws.String(tableName)},
	)
	matchStateUsecase = usecases.NewMatchStateUsecase(
		storageClient,
		clockwork.NewRealClock(),
		usecases.DefaultPersistenceConfig(),
	)
}

// handler returns the repaired snapshot of a match. A match that was never
// stored yields its defaults.
func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	matchId := event.PathParameters["id"]
	if !matchIdPattern.MatchString(matchId) {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	matchState, err := matchStateUsecase.Load(ctx, matchId)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to load match state: %w", err)
	}

	matchStateJson, err := json.Marshal(matchState)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to marshal response: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(matchStateJson),
	}, nil
}

func main() {
	lambda.Start(handler)
}
