package service

import (
	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/auth"
	"github.com/researchmesh/a2a-go/pkg/catalog"
	"github.com/researchmesh/a2a-go/pkg/errors"
	"github.com/researchmesh/a2a-go/pkg/manifest"
	"github.com/researchmesh/a2a-go/pkg/transport"
)

// GatewayAgent is the from_agent stamped on messages the HTTP surface
// injects into the mesh.
const GatewayAgent = "gateway.agent.v1"

/*
Gateway is the HTTP edge of the mesh: humans and external services
discover tools, submit task requests and feed approval decisions onto
the bus through it. The gateway never executes anything itself, it only
validates and publishes.
*/
type Gateway struct {
	app      *fiber.App
	bus      transport.Interface
	registry *manifest.Registry
	catalog  *catalog.Registry
	auth     *auth.Service
	executor string
	director string
}

type GatewayOption func(*Gateway)

// WithAuthService enables bearer-token authentication on all routes.
func WithAuthService(svc *auth.Service) GatewayOption {
	return func(gw *Gateway) {
		gw.auth = svc
	}
}

// WithAgentCatalog serves the agent directory and resolves recipients.
func WithAgentCatalog(cat *catalog.Registry) GatewayOption {
	return func(gw *Gateway) {
		gw.catalog = cat
	}
}

// WithExecutorAgent pins the executor recipient for tool calls.
func WithExecutorAgent(name string) GatewayOption {
	return func(gw *Gateway) {
		gw.executor = name
	}
}

func NewGateway(
	bus transport.Interface,
	registry *manifest.Registry,
	opts ...GatewayOption,
) *Gateway {
	gw := &Gateway{
		app: fiber.New(fiber.Config{
			AppName:      "ResearchMesh Gateway",
			ServerHeader: "ResearchMesh-Gateway",
		}),
		bus:      bus,
		registry: registry,
		executor: "executor.agent.v1",
	}

	for _, opt := range opts {
		opt(gw)
	}

	gw.routes()
	return gw
}

func (gw *Gateway) routes() {
	if gw.auth != nil {
		gw.app.Use(BearerAuth(gw.auth))
	}

	api := gw.app.Group("/api/v1")

	api.Get("/tools", gw.listTools)
	api.Get("/tools/:id", gw.getTool)
	api.Post("/tools/:id/validate", gw.validateTool)
	api.Post("/tools/:id/call", gw.callTool)
	api.Post("/approvals", gw.submitApproval)
	api.Get("/agents", gw.listAgents)
	api.Get("/queues/:agent/pending", gw.pendingCount)
}

// Run blocks serving HTTP on addr.
func (gw *Gateway) Run(addr string) error {
	log.Info("gateway listening", "addr", addr)
	return gw.app.Listen(addr)
}

// App exposes the fiber app, used by tests and embedding callers.
func (gw *Gateway) App() *fiber.App {
	return gw.app
}

func (gw *Gateway) listTools(ctx fiber.Ctx) error {
	if claims := ClaimsFrom(ctx); claims != nil && len(claims.Scopes) > 0 {
		return ctx.Status(fiber.StatusOK).JSON(gw.registry.List(claims.Scopes...))
	}

	return ctx.Status(fiber.StatusOK).JSON(gw.registry.List())
}

func (gw *Gateway) getTool(ctx fiber.Ctx) error {
	tool, ok := gw.registry.Get(ctx.Params("id"))

	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tool not found: " + ctx.Params("id"),
		})
	}

	return ctx.Status(fiber.StatusOK).JSON(tool)
}

type validateRequest struct {
	Inputs map[string]any `json:"inputs"`
}

func (gw *Gateway) validateTool(ctx fiber.Ctx) error {
	var body validateRequest

	if err := ctx.Bind().Body(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	toolID := ctx.Params("id")

	if err := gw.registry.ValidateInputs(toolID, body.Inputs); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"valid": false,
			"error": errorMessage(err),
		})
	}

	if err := gw.registry.CheckConstraints(toolID, body.Inputs); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"valid": false,
			"error": errorMessage(err),
		})
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"valid": true})
}

type callRequest struct {
	Inputs  map[string]any `json:"inputs"`
	TaskID  string         `json:"task_id,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
}

/*
callTool validates the invocation and publishes a TASK_REQUEST to the
executor. The caller's verified roles travel in the request metadata so
the executor can enforce tool access at acceptance time.
*/
func (gw *Gateway) callTool(ctx fiber.Ctx) error {
	var body callRequest

	if err := ctx.Bind().Body(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	toolID := ctx.Params("id")
	tool, ok := gw.registry.Get(toolID)

	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tool not found: " + toolID,
		})
	}

	claims := ClaimsFrom(ctx)

	if claims != nil && !auth.CheckToolAccess(claims.Roles, tool.Auth.Scope) {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not authorized to call " + toolID,
		})
	}

	if err := gw.registry.ValidateInputs(toolID, body.Inputs); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": errorMessage(err),
		})
	}

	if err := gw.registry.CheckConstraints(toolID, body.Inputs); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": errorMessage(err),
		})
	}

	taskID := body.TaskID

	if taskID == "" {
		taskID = uuid.NewString()
	}

	msg := a2a.NewTaskRequest(GatewayAgent, gw.resolveExecutor(), taskID, toolID, body.Inputs, body.TraceID)

	if claims != nil {
		msg.Payload.(*a2a.TaskRequest).Metadata = map[string]any{
			"roles":     claims.Roles,
			"caller_id": claims.AgentID,
		}
	}

	if err := gw.bus.Publish(ctx.RequestCtx(), msg); err != nil {
		log.Error("failed to publish task request", "task_id", taskID, "error", err)
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Transport unavailable",
		})
	}

	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id":  taskID,
		"trace_id": msg.TraceID,
		"tool_id":  toolID,
	})
}

type approvalSubmission struct {
	TaskID   string `json:"task_id"`
	Decision bool   `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

/*
submitApproval lets a human decision reach the executor's approval
gate. The approver identity comes from the verified claims when auth is
enabled, otherwise the submission is anonymous.
*/
func (gw *Gateway) submitApproval(ctx fiber.Ctx) error {
	var body approvalSubmission

	if err := ctx.Bind().Body(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	if body.TaskID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "task_id is required",
		})
	}

	approverID := "anonymous"
	claims := ClaimsFrom(ctx)

	if claims != nil {
		approverID = claims.AgentID

		if !auth.HasPermission(claims.Roles, auth.PermApprovalsApprove) {
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Not authorized to submit approvals",
			})
		}
	}

	msg := a2a.NewApprovalResponse(GatewayAgent, gw.resolveExecutor(),
		body.TaskID, approverID, body.Decision, body.Notes, "")

	if err := gw.bus.Publish(ctx.RequestCtx(), msg); err != nil {
		log.Error("failed to publish approval response", "task_id", body.TaskID, "error", err)
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Transport unavailable",
		})
	}

	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id":  body.TaskID,
		"decision": body.Decision,
	})
}

func (gw *Gateway) listAgents(ctx fiber.Ctx) error {
	if gw.catalog == nil {
		return ctx.Status(fiber.StatusOK).JSON([]catalog.AgentCard{})
	}

	return ctx.Status(fiber.StatusOK).JSON(gw.catalog.GetAgents())
}

func (gw *Gateway) pendingCount(ctx fiber.Ctx) error {
	group := ctx.Query("group", transport.DefaultGroup)
	count, err := gw.bus.PendingCount(ctx.RequestCtx(), ctx.Params("agent"), group)

	if err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Transport unavailable",
		})
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"agent":   ctx.Params("agent"),
		"group":   group,
		"pending": count,
	})
}

func (gw *Gateway) resolveExecutor() string {
	if gw.catalog != nil {
		if card := gw.catalog.ResolveRole(catalog.RoleExecutor); card.Name != "" {
			return card.Name
		}
	}

	return gw.executor
}

func errorMessage(err error) string {
	if agentErr, ok := err.(*errors.AgentError); ok {
		return agentErr.Message
	}

	return err.Error()
}
