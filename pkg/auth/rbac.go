package auth

// Roles known to the mesh.
const (
	RoleUser           = "user"
	RoleResearcher     = "researcher"
	RoleAgentPlanner   = "agent_planner"
	RoleAgentExecutor  = "agent_executor"
	RoleAgentEvaluator = "agent_evaluator"
	RoleAdmin          = "admin"
)

// Permissions a role can grant. Tool manifests reference these in
// their auth.scope lists.
const (
	PermToolsDiscover     = "tools:discover"
	PermToolsInvoke       = "tools:invoke"
	PermDatasetsRead      = "datasets:read"
	PermDatasetsWrite     = "datasets:write"
	PermTasksCreate       = "tasks:create"
	PermTasksRead         = "tasks:read"
	PermTasksUpdate       = "tasks:update"
	PermTasksDelete       = "tasks:delete"
	PermExecutorRun       = "executor:run"
	PermAnalyzerRun       = "analyzer:run"
	PermApprovalsApprove  = "approvals:approve"
	PermApprovalsReject   = "approvals:reject"
	PermPlansCreate       = "plans:create"
	PermPlansRead         = "plans:read"
	PermEvaluationsCreate = "evaluations:create"
	PermEvaluationsRead   = "evaluations:read"
)

var allPermissions = []string{
	PermToolsDiscover, PermToolsInvoke,
	PermDatasetsRead, PermDatasetsWrite,
	PermTasksCreate, PermTasksRead, PermTasksUpdate, PermTasksDelete,
	PermExecutorRun, PermAnalyzerRun,
	PermApprovalsApprove, PermApprovalsReject,
	PermPlansCreate, PermPlansRead,
	PermEvaluationsCreate, PermEvaluationsRead,
}

// rolePermissions maps each role to the permissions it grants.
var rolePermissions = map[string][]string{
	RoleUser: {
		PermToolsDiscover, PermDatasetsRead, PermTasksRead,
	},
	RoleResearcher: {
		PermToolsDiscover, PermToolsInvoke,
		PermDatasetsRead, PermDatasetsWrite,
		PermTasksCreate, PermTasksRead,
		PermPlansRead, PermEvaluationsRead,
	},
	RoleAgentPlanner: {
		PermToolsDiscover,
		PermPlansCreate, PermPlansRead,
		PermTasksCreate, PermTasksRead,
	},
	RoleAgentExecutor: {
		PermToolsInvoke,
		PermExecutorRun, PermAnalyzerRun,
		PermDatasetsRead,
		PermTasksRead, PermTasksUpdate,
	},
	RoleAgentEvaluator: {
		PermEvaluationsCreate, PermEvaluationsRead, PermTasksRead,
	},
	RoleAdmin: allPermissions,
}

/*
PermissionsFor returns the union of permissions granted by the given
roles. Unknown roles grant nothing.
*/
func PermissionsFor(roles []string) map[string]bool {
	permissions := make(map[string]bool)

	for _, role := range roles {
		for _, permission := range rolePermissions[role] {
			permissions[permission] = true
		}
	}

	return permissions
}

// HasPermission reports whether any of the roles grants the permission.
func HasPermission(roles []string, permission string) bool {
	return PermissionsFor(roles)[permission]
}

/*
CheckToolAccess grants access when the roles' permission union
intersects the tool's required scopes. One match is enough.
*/
func CheckToolAccess(roles []string, toolScopes []string) bool {
	permissions := PermissionsFor(roles)

	for _, scope := range toolScopes {
		if permissions[scope] {
			return true
		}
	}

	return false
}
