package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/agent"
	"github.com/researchmesh/a2a-go/pkg/catalog"
	"github.com/researchmesh/a2a-go/pkg/manifest"
	"github.com/researchmesh/a2a-go/pkg/provider"
	"github.com/researchmesh/a2a-go/pkg/stores/s3"
	"github.com/researchmesh/a2a-go/pkg/tools"
	"github.com/researchmesh/a2a-go/pkg/transport"
	"github.com/spf13/viper"
)

// Construction helpers shared by the subcommands. Everything reads
// from viper so the config file is the single source of wiring truth.

func buildTransport() transport.Interface {
	return transport.NewRedisTransport(viper.GetString("redis.addr"))
}

func loadRegistry() (*manifest.Registry, error) {
	return manifest.Load(viper.GetString("manifests.dir"))
}

func buildCatalog() *catalog.Registry {
	cat := catalog.NewRegistry()

	cat.AddAgent(catalog.AgentCard{
		Name: viper.GetString("agents.planner"),
		Role: catalog.RolePlanner,
	})
	cat.AddAgent(catalog.AgentCard{
		Name: viper.GetString("agents.executor"),
		Role: catalog.RoleExecutor,
	})
	cat.AddAgent(catalog.AgentCard{
		Name: viper.GetString("agents.director"),
		Role: catalog.RoleDirector,
	})

	return cat
}

func buildOracle() provider.Interface {
	model := viper.GetString("provider.model")

	switch viper.GetString("provider.name") {
	case "anthropic":
		return provider.NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY"), model)
	default:
		return provider.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), model)
	}
}

/*
buildArtifactStore returns nil when no object store is configured;
the executor then skips artifact uploads.
*/
func buildArtifactStore(ctx context.Context) *s3.ArtifactStore {
	endpoint := viper.GetString("s3.endpoint")

	if endpoint == "" {
		return nil
	}

	conn, err := s3.NewConn(s3.ConnConfig{
		Endpoint:  endpoint,
		AccessKey: viper.GetString("s3.access_key"),
		SecretKey: viper.GetString("s3.secret_key"),
		UseSSL:    viper.GetBool("s3.use_ssl"),
	})

	if err != nil {
		log.Error("failed to connect to object store, artifacts disabled", "error", err)
		return nil
	}

	store := s3.NewArtifactStore(conn)

	if err := store.EnsureBucket(ctx); err != nil {
		log.Error("failed to ensure artifact bucket, artifacts disabled", "error", err)
		return nil
	}

	return store
}

func buildExecutor(ctx context.Context, bus transport.Interface, registry *manifest.Registry) *agent.Executor {
	opts := []agent.ExecutorOption{
		agent.WithCatalog(buildCatalog()),
		agent.WithDirector(viper.GetString("agents.director")),
	}

	if store := buildArtifactStore(ctx); store != nil {
		opts = append(opts, agent.WithArtifactStore(store))
	}

	return agent.NewExecutor(
		viper.GetString("agents.executor"),
		bus,
		registry,
		tools.NewLocalRunner(viper.GetString("outputs.dir")),
		opts...,
	)
}

func buildPlanner(bus transport.Interface, registry *manifest.Registry) *agent.Planner {
	return agent.NewPlanner(
		viper.GetString("agents.planner"),
		bus,
		registry,
		buildOracle(),
		agent.WithPlannerCatalog(buildCatalog()),
		agent.WithExecutor(viper.GetString("agents.executor")),
	)
}
