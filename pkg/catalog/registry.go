package catalog

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Well-known roles in the research mesh.
const (
	RolePlanner   = "planner"
	RoleExecutor  = "executor"
	RoleEvaluator = "evaluator"
	RoleDirector  = "director"
)

/*
AgentCard describes one participant of the mesh: its logical name (the
transport partition it receives on), the role it plays, and the scopes
its credential carries.
*/
type AgentCard struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

/*
Registry is the directory of participating agents. Senders resolve
recipients by role here instead of hard-coding agent names.
*/
type Registry struct {
	agents *sync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		agents: new(sync.Map),
	}
}

func (registry *Registry) AddAgent(card AgentCard) {
	log.Info("adding agent to catalog", "name", card.Name, "role", card.Role)
	registry.agents.Store(card.Name, card)
}

func (registry *Registry) GetAgent(name string) AgentCard {
	agent, ok := registry.agents.Load(name)

	if !ok {
		return AgentCard{}
	}

	return agent.(AgentCard)
}

func (registry *Registry) GetAgents() []AgentCard {
	agents := make([]AgentCard, 0)

	registry.agents.Range(func(key, value any) bool {
		agents = append(agents, value.(AgentCard))
		return true
	})

	return agents
}

/*
ResolveRole returns the first registered agent playing the given role.
An empty card means no such agent is registered.
*/
func (registry *Registry) ResolveRole(role string) AgentCard {
	var found AgentCard

	registry.agents.Range(func(key, value any) bool {
		card := value.(AgentCard)

		if card.Role == role {
			found = card
			return false
		}

		return true
	})

	return found
}
