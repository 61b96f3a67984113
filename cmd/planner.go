package cmd

import (
	"fmt"

	"github.com/researchmesh/a2a-go/pkg/logging"
	"github.com/spf13/cobra"
)

var plannerGoal string

var plannerCmd = &cobra.Command{
	Use:   "planner",
	Short: "Run the planner agent",
	Long: `Runs the planner: it tracks task status and result messages on its
partition. With --goal it first asks the planning oracle for a plan,
emits a TASK_REQUEST per step and prints the task ids before entering
the tracking loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		registry, err := loadRegistry()

		if err != nil {
			return err
		}

		bus := buildTransport()
		defer bus.Stop()

		plnr := buildPlanner(bus, registry)

		if plannerGoal != "" {
			plan := plnr.CreatePlan(cmd.Context(), plannerGoal, "")
			taskIDs, err := plnr.ExecutePlan(cmd.Context(), plan, "")

			if err != nil {
				return err
			}

			fmt.Printf("plan %s emitted %d tasks:\n", plan.PlanID, len(taskIDs))

			for i, taskID := range taskIDs {
				fmt.Printf("  %s -> %s\n", taskID, plan.Steps[i].ToolID)
			}
		}

		return plnr.Start(cmd.Context())
	},
}

func init() {
	plannerCmd.Flags().StringVar(&plannerGoal, "goal", "", "research goal to plan and execute")
	rootCmd.AddCommand(plannerCmd)
}
