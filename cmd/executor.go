package cmd

import (
	"github.com/researchmesh/a2a-go/pkg/logging"
	"github.com/spf13/cobra"
)

var executorCmd = &cobra.Command{
	Use:   "executor",
	Short: "Run the executor agent",
	Long: `Runs the task executor: it consumes TASK_REQUEST messages from its
partition, validates them against the tool manifests, runs tools (or
parks them at the approval gate) and reports results back.

Run exactly one executor instance per consumer group. The approval
parking table lives in process memory, so a second instance in the
same group may receive an approval decision for a task it never
parked and drop it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		registry, err := loadRegistry()

		if err != nil {
			return err
		}

		bus := buildTransport()
		defer bus.Stop()

		exec := buildExecutor(cmd.Context(), bus, registry)
		return exec.Start(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(executorCmd)
}
