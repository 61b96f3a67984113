package a2a

import (
	"encoding/json"

	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
Payload is the tagged union of per-type message bodies. Each concrete
variant preserves wire fields it does not model in Extra, so a relay
that re-serializes a message emits them unchanged.
*/
type Payload interface {
	Kind() MessageType
	validate() error
}

// Task status values carried by TASK_STATUS payloads.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPaused    = "paused"
	StatusRejected  = "rejected"
)

// Risk levels carried by APPROVAL_REQUEST payloads.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type TaskRequest struct {
	TaskID   string         `json:"task_id"`
	ToolID   string         `json:"tool_id"`
	Inputs   map[string]any `json:"inputs"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (TaskRequest) Kind() MessageType { return TypeTaskRequest }

func (p TaskRequest) validate() error {
	if p.TaskID == "" || p.ToolID == "" {
		return errors.ErrMalformedMessage.WithMessagef("task request requires task_id and tool_id")
	}
	return nil
}

func (p TaskRequest) MarshalJSON() ([]byte, error) {
	type alias TaskRequest
	return mergeExtra(alias(p), p.Extra)
}

func (p *TaskRequest) UnmarshalJSON(data []byte) error {
	type alias TaskRequest
	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*p = TaskRequest(a)
	p.Extra = splitExtra(data, "task_id", "tool_id", "inputs", "metadata")
	return nil
}

type TaskStatus struct {
	TaskID   string   `json:"task_id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
	Message  string   `json:"message,omitempty"`
	Logs     string   `json:"logs,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (TaskStatus) Kind() MessageType { return TypeTaskStatus }

func (p TaskStatus) validate() error {
	if p.TaskID == "" || p.Status == "" {
		return errors.ErrMalformedMessage.WithMessagef("task status requires task_id and status")
	}

	switch p.Status {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusPaused:
	default:
		return errors.ErrMalformedMessage.WithMessagef("unknown task status %q", p.Status)
	}

	if p.Progress != nil && (*p.Progress < 0.0 || *p.Progress > 1.0) {
		return errors.ErrMalformedMessage.WithMessagef("progress %f outside [0.0, 1.0]", *p.Progress)
	}

	return nil
}

func (p TaskStatus) MarshalJSON() ([]byte, error) {
	type alias TaskStatus
	return mergeExtra(alias(p), p.Extra)
}

func (p *TaskStatus) UnmarshalJSON(data []byte) error {
	type alias TaskStatus
	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*p = TaskStatus(a)
	p.Extra = splitExtra(data, "task_id", "status", "progress", "message", "logs")
	return nil
}

type TaskResult struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Error     string         `json:"error,omitempty"`
	Artifacts []string       `json:"artifacts"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (TaskResult) Kind() MessageType { return TypeTaskResult }

func (p TaskResult) validate() error {
	if p.TaskID == "" || p.Status == "" {
		return errors.ErrMalformedMessage.WithMessagef("task result requires task_id and status")
	}

	switch p.Status {
	case StatusCompleted, StatusFailed, StatusRejected:
	default:
		return errors.ErrMalformedMessage.WithMessagef("unknown result status %q", p.Status)
	}

	return nil
}

func (p TaskResult) MarshalJSON() ([]byte, error) {
	type alias TaskResult
	if p.Artifacts == nil {
		p.Artifacts = []string{}
	}
	return mergeExtra(alias(p), p.Extra)
}

func (p *TaskResult) UnmarshalJSON(data []byte) error {
	type alias TaskResult
	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*p = TaskResult(a)
	p.Extra = splitExtra(data, "task_id", "status", "outputs", "error", "artifacts")
	return nil
}

type ApprovalRequest struct {
	TaskID        string   `json:"task_id"`
	Reason        string   `json:"reason"`
	Artifacts     []string `json:"artifacts"`
	EstimatedRisk string   `json:"estimated_risk"`
	Approvers     []string `json:"approvers"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (ApprovalRequest) Kind() MessageType { return TypeApprovalRequest }

func (p ApprovalRequest) validate() error {
	if p.TaskID == "" || p.Reason == "" {
		return errors.ErrMalformedMessage.WithMessagef("approval request requires task_id and reason")
	}

	switch p.EstimatedRisk {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return errors.ErrMalformedMessage.WithMessagef("unknown risk level %q", p.EstimatedRisk)
	}

	return nil
}

func (p ApprovalRequest) MarshalJSON() ([]byte, error) {
	type alias ApprovalRequest
	if p.Artifacts == nil {
		p.Artifacts = []string{}
	}
	if p.Approvers == nil {
		p.Approvers = []string{}
	}
	return mergeExtra(alias(p), p.Extra)
}

func (p *ApprovalRequest) UnmarshalJSON(data []byte) error {
	type alias ApprovalRequest
	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*p = ApprovalRequest(a)
	p.Extra = splitExtra(data, "task_id", "reason", "artifacts", "estimated_risk", "approvers")
	return nil
}

type ApprovalResponse struct {
	TaskID     string `json:"task_id"`
	ApproverID string `json:"approver_id"`
	Decision   bool   `json:"decision"`
	Notes      string `json:"notes,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (ApprovalResponse) Kind() MessageType { return TypeApprovalResponse }

func (p ApprovalResponse) validate() error {
	if p.TaskID == "" || p.ApproverID == "" {
		return errors.ErrMalformedMessage.WithMessagef("approval response requires task_id and approver_id")
	}
	return nil
}

func (p ApprovalResponse) MarshalJSON() ([]byte, error) {
	type alias ApprovalResponse
	return mergeExtra(alias(p), p.Extra)
}

func (p *ApprovalResponse) UnmarshalJSON(data []byte) error {
	type alias ApprovalResponse
	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*p = ApprovalResponse(a)
	p.Extra = splitExtra(data, "task_id", "approver_id", "decision", "notes")
	return nil
}

type ErrorPayload struct {
	TaskID  string `json:"task_id,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (ErrorPayload) Kind() MessageType { return TypeError }

func (p ErrorPayload) validate() error {
	if p.Message == "" {
		return errors.ErrMalformedMessage.WithMessagef("error payload requires a message")
	}
	return nil
}

func (p ErrorPayload) MarshalJSON() ([]byte, error) {
	type alias ErrorPayload
	return mergeExtra(alias(p), p.Extra)
}

func (p *ErrorPayload) UnmarshalJSON(data []byte) error {
	type alias ErrorPayload
	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*p = ErrorPayload(a)
	p.Extra = splitExtra(data, "task_id", "code", "message")
	return nil
}

/*
unmarshalPayload decodes the raw payload bytes into the concrete
variant for the given type tag and checks its required fields.
*/
func unmarshalPayload(msgType MessageType, raw json.RawMessage) (Payload, error) {
	var payload Payload

	switch msgType {
	case TypeTaskRequest:
		payload = &TaskRequest{}
	case TypeTaskStatus:
		payload = &TaskStatus{}
	case TypeTaskResult:
		payload = &TaskResult{}
	case TypeApprovalRequest:
		payload = &ApprovalRequest{}
	case TypeApprovalResponse:
		payload = &ApprovalResponse{}
	case TypeError:
		payload = &ErrorPayload{}
	default:
		return nil, errors.ErrMalformedMessage.WithMessagef("unknown message type %q", msgType)
	}

	if len(raw) == 0 {
		return nil, errors.ErrMalformedMessage.WithMessagef("message type %q carries no payload", msgType)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, errors.ErrMalformedMessage.WithMessagef("failed to parse %s payload: %v", msgType, err)
	}

	if err := payload.validate(); err != nil {
		return nil, err
	}

	return payload, nil
}

/*
mergeExtra marshals the typed fields and re-emits preserved unknown
fields alongside them. Typed fields win on key collision.
*/
func mergeExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)

	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return data, nil
	}

	merged := make(map[string]json.RawMessage, len(extra)+8)

	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}

	for key, value := range extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}

	return json.Marshal(merged)
}

/*
splitExtra returns the wire fields not claimed by the typed struct.
*/
func splitExtra(data []byte, knownKeys ...string) map[string]json.RawMessage {
	fields := make(map[string]json.RawMessage)

	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	for _, key := range knownKeys {
		delete(fields, key)
	}

	if len(fields) == 0 {
		return nil
	}

	return fields
}
