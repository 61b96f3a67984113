package cmd

import (
	"fmt"

	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	approveTaskID   string
	approveDeny     bool
	approveNotes    string
	approveApprover string
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Submit an approval decision for a parked task",
	Long: `Publishes an APPROVAL_RESPONSE to the executor for a task parked at
the approval gate. Use --deny to reject instead of approving.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		if approveTaskID == "" {
			return fmt.Errorf("--task is required")
		}

		bus := buildTransport()
		defer bus.Stop()

		msg := a2a.NewApprovalResponse(
			viper.GetString("agents.director"),
			viper.GetString("agents.executor"),
			approveTaskID,
			approveApprover,
			!approveDeny,
			approveNotes,
			"",
		)

		if err := bus.Publish(cmd.Context(), msg); err != nil {
			return err
		}

		decision := "approved"

		if approveDeny {
			decision = "denied"
		}

		fmt.Printf("task %s %s\n", approveTaskID, decision)
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveTaskID, "task", "", "task id awaiting approval")
	approveCmd.Flags().BoolVar(&approveDeny, "deny", false, "reject the task instead of approving")
	approveCmd.Flags().StringVar(&approveNotes, "notes", "", "notes for the decision")
	approveCmd.Flags().StringVar(&approveApprover, "approver", "director", "approver identity")
	rootCmd.AddCommand(approveCmd)
}
