package cmd

import (
	"github.com/researchmesh/a2a-go/pkg/auth"
	"github.com/researchmesh/a2a-go/pkg/logging"
	"github.com/researchmesh/a2a-go/pkg/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Long: `Serves the HTTP edge of the mesh: tool discovery and validation,
task submission and human approval decisions. Set auth.signing_key in
the config to require bearer tokens on every route.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup()

		registry, err := loadRegistry()

		if err != nil {
			return err
		}

		bus := buildTransport()
		defer bus.Stop()

		opts := []service.GatewayOption{
			service.WithAgentCatalog(buildCatalog()),
			service.WithExecutorAgent(viper.GetString("agents.executor")),
		}

		if key := viper.GetString("auth.signing_key"); key != "" {
			opts = append(opts, service.WithAuthService(auth.NewService([]byte(key))))
		}

		gw := service.NewGateway(bus, registry, opts...)
		return gw.Run(viper.GetString("gateway.addr"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
