package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/auth"
	"github.com/researchmesh/a2a-go/pkg/manifest"
	"github.com/researchmesh/a2a-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishRecorder struct {
	mu   sync.Mutex
	msgs []*a2a.Message
}

func (rec *publishRecorder) Publish(ctx context.Context, msg *a2a.Message) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.msgs = append(rec.msgs, msg)
	return nil
}

func (rec *publishRecorder) Subscribe(ctx context.Context, agentID string, handler transport.Handler, opts ...transport.SubscribeOption) error {
	return nil
}

func (rec *publishRecorder) PendingCount(ctx context.Context, agentID, group string) (int64, error) {
	return 0, nil
}

func (rec *publishRecorder) Stop() {}

func (rec *publishRecorder) last() *a2a.Message {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if len(rec.msgs) == 0 {
		return nil
	}

	return rec.msgs[len(rec.msgs)-1]
}

func gatewayRegistry() *manifest.Registry {
	return manifest.NewRegistry(
		manifest.Tool{
			ToolID: "analyzer.eda",
			Inputs: map[string]manifest.InputSpec{
				"dataset_path": {Type: manifest.TypeString, Required: true},
			},
			Auth: manifest.Auth{Scope: []string{"analyzer:run"}},
		},
	)
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestListAndGetTools(t *testing.T) {
	gw := NewGateway(&publishRecorder{}, gatewayRegistry())

	resp, err := gw.App().Test(httptest.NewRequest("GET", "/api/v1/tools", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var tools []manifest.Tool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tools))
	require.Len(t, tools, 1)
	assert.Equal(t, "analyzer.eda", tools[0].ToolID)

	resp, err = gw.App().Test(httptest.NewRequest("GET", "/api/v1/tools/analyzer.eda", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = gw.App().Test(httptest.NewRequest("GET", "/api/v1/tools/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	gw := NewGateway(&publishRecorder{}, gatewayRegistry())

	req := httptest.NewRequest("POST", "/api/v1/tools/analyzer.eda/validate",
		jsonBody(t, map[string]any{"inputs": map[string]any{"dataset_path": "/data/x.csv"}}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/v1/tools/analyzer.eda/validate",
		jsonBody(t, map[string]any{"inputs": map[string]any{"bogus": true}}))
	req.Header.Set("Content-Type", "application/json")

	resp, err = gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "Unknown parameter")
}

func TestCallToolPublishesTaskRequest(t *testing.T) {
	rec := &publishRecorder{}
	gw := NewGateway(rec, gatewayRegistry(), WithExecutorAgent("executor.agent.v1"))

	req := httptest.NewRequest("POST", "/api/v1/tools/analyzer.eda/call",
		jsonBody(t, map[string]any{"inputs": map[string]any{"dataset_path": "/data/x.csv"}}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["task_id"])
	assert.NotEmpty(t, body["trace_id"])

	msg := rec.last()
	require.NotNil(t, msg)
	assert.Equal(t, a2a.TypeTaskRequest, msg.Type)
	assert.Equal(t, "executor.agent.v1", msg.ToAgent)
	assert.Equal(t, GatewayAgent, msg.FromAgent)
	assert.Equal(t, body["task_id"], msg.Payload.(*a2a.TaskRequest).TaskID)
}

func TestCallToolRejectsInvalidInputs(t *testing.T) {
	rec := &publishRecorder{}
	gw := NewGateway(rec, gatewayRegistry())

	req := httptest.NewRequest("POST", "/api/v1/tools/analyzer.eda/call",
		jsonBody(t, map[string]any{"inputs": map[string]any{}}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
	assert.Nil(t, rec.last())
}

func TestApprovalSubmissionPublishesResponse(t *testing.T) {
	rec := &publishRecorder{}
	gw := NewGateway(rec, gatewayRegistry(), WithExecutorAgent("executor.agent.v1"))

	req := httptest.NewRequest("POST", "/api/v1/approvals",
		jsonBody(t, map[string]any{"task_id": "task-1", "decision": true, "notes": "looks fine"}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	msg := rec.last()
	require.NotNil(t, msg)
	assert.Equal(t, a2a.TypeApprovalResponse, msg.Type)

	approval := msg.Payload.(*a2a.ApprovalResponse)
	assert.Equal(t, "task-1", approval.TaskID)
	assert.True(t, approval.Decision)
	assert.Equal(t, "anonymous", approval.ApproverID)
}

func TestBearerAuthGuardsRoutes(t *testing.T) {
	svc := auth.NewService([]byte("test-signing-key"))
	rec := &publishRecorder{}
	gw := NewGateway(rec, gatewayRegistry(), WithAuthService(svc))

	resp, err := gw.App().Test(httptest.NewRequest("GET", "/api/v1/tools", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	token, err := svc.IssueToken("alice", "human", []string{auth.RoleResearcher},
		[]string{"analyzer:run"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCallToolEnforcesRoleAccess(t *testing.T) {
	svc := auth.NewService([]byte("test-signing-key"))
	rec := &publishRecorder{}
	gw := NewGateway(rec, gatewayRegistry(), WithAuthService(svc))

	// RoleUser cannot invoke analyzer tools.
	token, err := svc.IssueToken("bob", "human", []string{auth.RoleUser}, nil, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/tools/analyzer.eda/call",
		jsonBody(t, map[string]any{"inputs": map[string]any{"dataset_path": "/data/x.csv"}}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Nil(t, rec.last())
}

func TestApprovalRequiresPermissionWhenAuthenticated(t *testing.T) {
	svc := auth.NewService([]byte("test-signing-key"))
	rec := &publishRecorder{}
	gw := NewGateway(rec, gatewayRegistry(), WithAuthService(svc))

	token, err := svc.IssueToken("bob", "human", []string{auth.RoleUser}, nil, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/approvals",
		jsonBody(t, map[string]any{"task_id": "task-2", "decision": false}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Nil(t, rec.last())

	// Admins hold approvals:approve.
	token, err = svc.IssueToken("carol", "human", []string{auth.RoleAdmin}, nil, time.Hour)
	require.NoError(t, err)

	req = httptest.NewRequest("POST", "/api/v1/approvals",
		jsonBody(t, map[string]any{"task_id": "task-2", "decision": false}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = gw.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	msg := rec.last()
	require.NotNil(t, msg)
	assert.Equal(t, "carol", msg.Payload.(*a2a.ApprovalResponse).ApproverID)
}

func TestPendingCountEndpoint(t *testing.T) {
	bus := transport.NewInMemoryTransport()
	defer bus.Stop()

	gw := NewGateway(bus, gatewayRegistry())

	resp, err := gw.App().Test(httptest.NewRequest("GET", "/api/v1/queues/executor.agent.v1/pending", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(0), body["pending"])
	assert.Equal(t, transport.DefaultGroup, body["group"])
}
