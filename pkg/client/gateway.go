package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/manifest"
)

/*
GatewayClient talks to a researchmesh gateway over HTTP. It covers the
full tool surface: discovery, validation, invocation and approval
decisions. All methods return the decoded response or an error carrying
the gateway's error message.
*/
type GatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type GatewayClientOption func(*GatewayClient)

// WithToken attaches a bearer token to every request.
func WithToken(token string) GatewayClientOption {
	return func(client *GatewayClient) {
		client.token = token
	}
}

func NewGatewayClient(baseURL string, opts ...GatewayClientOption) *GatewayClient {
	client := &GatewayClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// CallResult is the gateway's acknowledgment of a task submission.
type CallResult struct {
	TaskID  string `json:"task_id"`
	TraceID string `json:"trace_id"`
	ToolID  string `json:"tool_id"`
}

// ListTools fetches the tools visible to the caller.
func (client *GatewayClient) ListTools(ctx context.Context) ([]manifest.Tool, error) {
	var tools []manifest.Tool

	if err := client.do(ctx, http.MethodGet, "/api/v1/tools", nil, &tools); err != nil {
		return nil, err
	}

	return tools, nil
}

// GetTool fetches one tool manifest.
func (client *GatewayClient) GetTool(ctx context.Context, toolID string) (manifest.Tool, error) {
	var tool manifest.Tool

	if err := client.do(ctx, http.MethodGet, "/api/v1/tools/"+toolID, nil, &tool); err != nil {
		return manifest.Tool{}, err
	}

	return tool, nil
}

// Validate checks inputs against a tool manifest without invoking it.
func (client *GatewayClient) Validate(ctx context.Context, toolID string, inputs map[string]any) error {
	body := map[string]any{"inputs": inputs}
	return client.do(ctx, http.MethodPost, "/api/v1/tools/"+toolID+"/validate", body, nil)
}

// CallTool submits a task request and returns the emitted task id.
func (client *GatewayClient) CallTool(ctx context.Context, toolID string, inputs map[string]any) (CallResult, error) {
	var result CallResult
	body := map[string]any{"inputs": inputs}

	if err := client.do(ctx, http.MethodPost, "/api/v1/tools/"+toolID+"/call", body, &result); err != nil {
		return CallResult{}, err
	}

	log.Debug("task submitted", "task_id", result.TaskID, "tool", toolID)
	return result, nil
}

// Approve submits an approval decision for a parked task.
func (client *GatewayClient) Approve(ctx context.Context, taskID string, decision bool, notes string) error {
	body := map[string]any{"task_id": taskID, "decision": decision, "notes": notes}
	return client.do(ctx, http.MethodPost, "/api/v1/approvals", body, nil)
}

// PendingCount reports delivered-but-unacknowledged entries for an agent.
func (client *GatewayClient) PendingCount(ctx context.Context, agentID string) (int64, error) {
	var result struct {
		Pending int64 `json:"pending"`
	}

	if err := client.do(ctx, http.MethodGet, "/api/v1/queues/"+agentID+"/pending", nil, &result); err != nil {
		return 0, err
	}

	return result.Pending, nil
}

func (client *GatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)

		if err != nil {
			return err
		}

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, reader)

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}

	resp, err := client.http.Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}

		if decodeErr := json.NewDecoder(resp.Body).Decode(&failure); decodeErr == nil && failure.Error != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, failure.Error)
		}

		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
