package catalog

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAddAndGetAgent(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with an executor", t, func() {
		registry.AddAgent(AgentCard{
			Name: "executor.agent.v1",
			Role: RoleExecutor,
		})

		Convey("Getting an existing agent returns its card", func() {
			agent := registry.GetAgent("executor.agent.v1")
			So(agent.Role, ShouldEqual, RoleExecutor)
		})

		Convey("Getting an unknown agent returns an empty card", func() {
			agent := registry.GetAgent("nobody")
			So(agent.Name, ShouldBeEmpty)
		})
	})
}

func TestGetAgents(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with two agents", t, func() {
		registry.AddAgent(AgentCard{Name: "planner.agent.v1", Role: RolePlanner})
		registry.AddAgent(AgentCard{Name: "executor.agent.v1", Role: RoleExecutor})

		Convey("GetAgents returns them all", func() {
			agents := registry.GetAgents()
			So(len(agents), ShouldEqual, 2)
		})
	})
}

func TestResolveRole(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with a director", t, func() {
		registry.AddAgent(AgentCard{Name: "director", Role: RoleDirector})

		Convey("Resolving the director role finds it", func() {
			card := registry.ResolveRole(RoleDirector)
			So(card.Name, ShouldEqual, "director")
		})

		Convey("Resolving an absent role yields an empty card", func() {
			card := registry.ResolveRole(RoleEvaluator)
			So(card.Name, ShouldBeEmpty)
		})
	})
}
