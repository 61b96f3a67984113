package a2a

// NewTaskRequest builds a TASK_REQUEST message addressed to an executor.
func NewTaskRequest(fromAgent, toAgent, taskID, toolID string, inputs map[string]any, traceID string) *Message {
	return New(TypeTaskRequest, fromAgent, toAgent, &TaskRequest{
		TaskID: taskID,
		ToolID: toolID,
		Inputs: inputs,
	}, traceID)
}

// NewTaskStatus builds a TASK_STATUS progress update.
func NewTaskStatus(fromAgent, toAgent, taskID, status string, progress *float64, message, traceID string) *Message {
	return New(TypeTaskStatus, fromAgent, toAgent, &TaskStatus{
		TaskID:   taskID,
		Status:   status,
		Progress: progress,
		Message:  message,
	}, traceID)
}

// NewTaskResult builds a terminal TASK_RESULT message.
func NewTaskResult(fromAgent, toAgent, taskID, status string, outputs map[string]any, errMsg, traceID string) *Message {
	return New(TypeTaskResult, fromAgent, toAgent, &TaskResult{
		TaskID:    taskID,
		Status:    status,
		Outputs:   outputs,
		Error:     errMsg,
		Artifacts: []string{},
	}, traceID)
}

// NewApprovalRequest builds an APPROVAL_REQUEST addressed to the director.
func NewApprovalRequest(fromAgent, toAgent, taskID, reason, risk string, approvers []string, traceID string) *Message {
	if approvers == nil {
		approvers = []string{}
	}

	return New(TypeApprovalRequest, fromAgent, toAgent, &ApprovalRequest{
		TaskID:        taskID,
		Reason:        reason,
		Artifacts:     []string{},
		EstimatedRisk: risk,
		Approvers:     approvers,
	}, traceID)
}

// NewApprovalResponse builds an APPROVAL_RESPONSE carrying a decision.
func NewApprovalResponse(fromAgent, toAgent, taskID, approverID string, decision bool, notes, traceID string) *Message {
	return New(TypeApprovalResponse, fromAgent, toAgent, &ApprovalResponse{
		TaskID:     taskID,
		ApproverID: approverID,
		Decision:   decision,
		Notes:      notes,
	}, traceID)
}

// Float is a small helper for optional progress values.
func Float(f float64) *float64 {
	return &f
}
