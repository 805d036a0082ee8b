package server

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/chess-vn/courtsync/internal/aws/compute"
	"github.com/chess-vn/courtsync/internal/aws/storage"
	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/chess-vn/courtsync/internal/repositories"
	"github.com/chess-vn/courtsync/internal/usecases"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// New wires a server from configuration: the persistence backend, the
// match state usecase and, when running on ECS, task protection.
func New(ctx context.Context, cfg Config) (*Server, error) {
	var closers []func()

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AwsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var repo interfaces.IMatchStateRepository
	switch cfg.Persistence.Backend {
	case BackendMemory:
		repo = repositories.NewMatchStateMemoryRepository()
	case BackendDynamoDB:
		repo = storage.NewClient(
			dynamodb.NewFromConfig(awsCfg),
			storage.Config{MatchStatesTableName: aws.String(cfg.MatchStatesTableName)},
		)
	case BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := repositories.EnsureMatchStatesTable(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		repo = repositories.NewMatchStatePgRepository(pool)
		closers = append(closers, pool.Close)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}

	usecase := usecases.NewMatchStateUsecase(
		repo,
		clockwork.NewRealClock(),
		usecases.PersistenceConfig{
			SaveAttempts: cfg.Persistence.SaveAttempts,
			MaxBackoff:   cfg.Persistence.MaxBackoff,
		},
	)

	var protector TaskProtector
	if computeCfg, ok := taskConfig(ctx, cfg); ok {
		protector = compute.NewClient(ecs.NewFromConfig(awsCfg), computeCfg)
	}

	s := NewServer(cfg, usecase, clockwork.NewRealClock(), protector)
	s.closers = closers
	logging.Info("server configured",
		zap.String("persistence_backend", cfg.Persistence.Backend),
		zap.Bool("task_protection", protector != nil),
	)
	return s, nil
}

func taskConfig(ctx context.Context, cfg Config) (compute.Config, bool) {
	if cfg.EcsClusterName != "" && cfg.EcsTaskArn != "" {
		return compute.Config{
			ClusterName: aws.String(cfg.EcsClusterName),
			TaskArn:     aws.String(cfg.EcsTaskArn),
		}, true
	}
	if cfg.EcsMetadataUri == "" {
		return compute.Config{}, false
	}
	metadata, err := compute.FetchTaskMetadata(ctx, cfg.EcsMetadataUri)
	if err != nil {
		logging.Warn("failed to fetch task metadata", zap.Error(err))
		return compute.Config{}, false
	}
	return compute.Config{
		ClusterName: aws.String(metadata.ClusterName),
		TaskArn:     aws.String(metadata.TaskArn),
	}, true
}
