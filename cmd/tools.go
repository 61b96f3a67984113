package cmd

import (
	"fmt"
	"strings"

	"github.com/researchmesh/a2a-go/pkg/client"
	"github.com/researchmesh/a2a-go/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	gatewayURL   string
	gatewayToken string
	callInputs   []string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the gateway exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		gw := newGatewayClient()
		tools, err := gw.ListTools(cmd.Context())

		if err != nil {
			return err
		}

		for _, tool := range tools {
			fmt.Printf("%s  %s\n", tool.ToolID, tool.Description)

			for name, spec := range tool.Inputs {
				required := ""

				if spec.Required {
					required = " (required)"
				}

				fmt.Printf("    %s: %s%s\n", name, spec.Type, required)
			}
		}

		return nil
	},
}

var callCmd = &cobra.Command{
	Use:   "call <tool_id>",
	Short: "Submit a tool invocation through the gateway",
	Long: `Submits a TASK_REQUEST for the given tool via the gateway and prints
the emitted task id. Inputs are passed as repeated --input key=value
flags and sent as strings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		inputs := make(map[string]any, len(callInputs))

		for _, pair := range callInputs {
			key, value, found := strings.Cut(pair, "=")

			if !found {
				return fmt.Errorf("invalid --input %q, expected key=value", pair)
			}

			inputs[key] = value
		}

		gw := newGatewayClient()
		result, err := gw.CallTool(cmd.Context(), args[0], inputs)

		if err != nil {
			return err
		}

		fmt.Printf("task %s submitted (trace %s)\n", result.TaskID, result.TraceID)
		return nil
	},
}

func newGatewayClient() *client.GatewayClient {
	var opts []client.GatewayClientOption

	if gatewayToken != "" {
		opts = append(opts, client.WithToken(gatewayToken))
	}

	return client.NewGatewayClient(gatewayURL, opts...)
}

func init() {
	for _, cmd := range []*cobra.Command{toolsCmd, callCmd} {
		cmd.Flags().StringVar(&gatewayURL, "gateway", "http://localhost:3210", "gateway base URL")
		cmd.Flags().StringVar(&gatewayToken, "token", "", "bearer token for the gateway")
	}

	callCmd.Flags().StringArrayVar(&callInputs, "input", nil, "tool input as key=value (repeatable)")

	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(callCmd)
}
