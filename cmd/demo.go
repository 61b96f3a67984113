package cmd

import (
	"github.com/researchmesh/a2a-go/pkg/logging"
	"github.com/researchmesh/a2a-go/pkg/service"
	"github.com/researchmesh/a2a-go/pkg/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the whole mesh in one process",
	Long: `Runs planner, executor and gateway inside a single process over the
in-memory transport. No Redis or object store needed; useful for
kicking the tires and for local development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		registry, err := loadRegistry()

		if err != nil {
			return err
		}

		bus := transport.NewInMemoryTransport()
		defer bus.Stop()

		exec := buildExecutor(cmd.Context(), bus, registry)
		plnr := buildPlanner(bus, registry)

		go func() { _ = exec.Start(cmd.Context()) }()
		go func() { _ = plnr.Start(cmd.Context()) }()

		gw := service.NewGateway(bus, registry,
			service.WithAgentCatalog(buildCatalog()),
			service.WithExecutorAgent(viper.GetString("agents.executor")),
		)

		return gw.Run(viper.GetString("gateway.addr"))
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}
