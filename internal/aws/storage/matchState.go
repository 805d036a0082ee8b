package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
)

const matchIdAttribute = "MatchId"

var _ interfaces.IMatchStateRepository = (*Client)(nil)

// GetMatchState reads the match item and returns its attributes, minus the
// key, as loosely typed values.
func (client *Client) GetMatchState(ctx context.Context, matchId string) (interface{}, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.MatchStatesTableName,
		Key: map[string]types.AttributeValue{
			matchIdAttribute: &types.AttributeValueMemberS{
				Value: matchId,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if output.Item == nil {
		return nil, interfaces.ErrMatchStateNotFound
	}
	var raw map[string]interface{}
	if err := attributevalue.UnmarshalMap(output.Item, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match state: %w", err)
	}
	delete(raw, matchIdAttribute)
	return raw, nil
}

func (client *Client) PutMatchState(ctx context.Context, matchId string, state entities.MatchState) error {
	av, err := attributevalue.MarshalMap(state)
	if err != nil {
		return fmt.Errorf("failed to marshal match state map: %w", err)
	}
	av[matchIdAttribute] = &types.AttributeValueMemberS{Value: matchId}

	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.MatchStatesTableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put match state: %w", err)
	}
	return nil
}
