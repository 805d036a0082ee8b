package storage

import "github.com/aws/aws-sdk-go-v2/service/dynamodb"

type Config struct {
	MatchStatesTableName *string
}

type Client struct {
	dynamodb *dynamodb.Client
	cfg      Config
}

func NewClient(dynamoClient *dynamodb.Client, cfg Config) *Client {
	return &Client{
		dynamodb: dynamoClient,
		cfg:      cfg,
	}
}
