package api

import (
	"context"
	"fmt"
)

// GetTasks fetches the scheduler's registered tasks.
func (c *Client) GetTasks(ctx context.Context) (*TasksList, error) {
	var resp TasksList
	if err := c.get(ctx, "/api/v1/scheduler/tasks", nil, &resp); err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}

	return &resp, nil
}

// RunTask triggers one scheduled task immediately. Status updates arrive on
// the task-scoped pipeline stream for the returned task id.
func (c *Client) RunTask(ctx context.Context, taskID string) (*TaskExecutionLog, error) {
	var resp TaskExecutionLog
	path := fmt.Sprintf("/api/v1/scheduler/tasks/%s/run", taskID)
	if err := c.postJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("run task %s: %w", taskID, err)
	}

	return &resp, nil
}

// GetPipelineState fetches the tenant's current pipeline run.
func (c *Client) GetPipelineState(ctx context.Context) (*PipelineState, error) {
	var resp PipelineState
	if err := c.get(ctx, "/api/v1/system/pipeline", nil, &resp); err != nil {
		return nil, fmt.Errorf("get pipeline state: %w", err)
	}

	return &resp, nil
}
