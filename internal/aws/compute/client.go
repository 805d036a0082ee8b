package compute

import "github.com/aws/aws-sdk-go-v2/service/ecs"

type Config struct {
	ClusterName *string
	TaskArn     *string
}

type Client struct {
	ecs *ecs.Client
	cfg Config
}

func NewClient(ecsClient *ecs.Client, cfg Config) *Client {
	return &Client{
		ecs: ecsClient,
		cfg: cfg,
	}
}
