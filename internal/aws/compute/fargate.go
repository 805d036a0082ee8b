package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

var (
	ErrMissingTaskMetadata = errors.New("missing task metadata")
	ErrUnknownTaskMetadata = errors.New("unknown task metadata response")
)

type TaskMetadata struct {
	TaskArn     string `json:"TaskARN"`
	ClusterName string `json:"Cluster"`
}

// UpdateServerProtection toggles ECS scale-in protection for this task.
func (client *Client) UpdateServerProtection(
	ctx context.Context,
	enabled bool,
) error {
	if client.cfg.ClusterName == nil || client.cfg.TaskArn == nil {
		return ErrMissingTaskMetadata
	}
	_, err := client.ecs.UpdateTaskProtection(ctx, &ecs.UpdateTaskProtectionInput{
		Cluster:           client.cfg.ClusterName,
		Tasks:             []string{*client.cfg.TaskArn},
		ProtectionEnabled: enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to update task protection: %w", err)
	}
	return nil
}

// FetchTaskMetadata reads the task metadata endpoint that ECS exposes to
// containers through ECS_CONTAINER_METADATA_URI_V4.
func FetchTaskMetadata(ctx context.Context, metadataUri string) (TaskMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataUri+"/task", nil)
	if err != nil {
		return TaskMetadata{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return TaskMetadata{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TaskMetadata{}, ErrUnknownTaskMetadata
	}
	var metadata TaskMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return TaskMetadata{}, fmt.Errorf("failed to decode body: %w", err)
	}
	return metadata, nil
}
