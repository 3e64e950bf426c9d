package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/checks"
	"github.com/gatewright/gatewright/internal/config"
	"github.com/gatewright/gatewright/internal/events"
	"github.com/gatewright/gatewright/internal/onboard"
	"github.com/gatewright/gatewright/internal/orchestrator"
	"github.com/gatewright/gatewright/internal/server"
	"github.com/gatewright/gatewright/internal/workflow"

	// Register forge providers with the hosting factory.
	_ "github.com/gatewright/gatewright/internal/hosting/github"
	_ "github.com/gatewright/gatewright/internal/hosting/gitlab"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long: `Serve starts the HTTP server that receives forge webhooks, runs
policy gates for each pull request event, and publishes the verdicts as
commit checks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFrom(cfgFile)
	}
	return config.Load()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newWorkflowRegistry wires the AI workflow when an API key is available.
// Without a key the registry stays empty and ai-rule gates report the
// workflow as unknown, which reads better than failing at call time.
func newWorkflowRegistry(cfg *config.Config, log *slog.Logger) *workflow.Registry {
	registry := workflow.NewRegistry()

	apiKey := os.Getenv(cfg.AI.APIKeyEnvVar)
	if apiKey == "" {
		log.Warn("no AI API key set, ai-rule gates will be neutral", "env_var", cfg.AI.APIKeyEnvVar)
		return registry
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	registry.Register(workflow.NewAnthropicWorkflow(workflow.DefaultWorkflowID, &client, cfg.AI.Model))
	return registry
}

func runServe(cfg *config.Config) error {
	log := newLogger()

	if cfg.Server.GitHubWebhookSecret == "" && cfg.Server.GitLabWebhookToken == "" {
		return fmt.Errorf("no webhook credentials set (GATEWRIGHT_GITHUB_WEBHOOK_SECRET or GATEWRIGHT_GITLAB_WEBHOOK_TOKEN)")
	}

	store := checks.NewStore(checks.DefaultTTL)
	defer store.Close()

	publisher := events.NewMemoryPublisher()
	defer publisher.Close()

	orch := orchestrator.New(log,
		orchestrator.WithPublisher(publisher),
		orchestrator.WithForceFailOnError(cfg.Checks.ForceFailOnError),
	)

	lifecycle := checks.New(log, orch, store, newWorkflowRegistry(cfg, log), publisher, checks.Config{
		CheckName:        cfg.Checks.CheckName,
		Deadline:         cfg.Checks.Deadline,
		RequiredContexts: cfg.Checks.RequiredContexts,
		WorkflowPaths:    cfg.Checks.WorkflowPaths,
	})

	srv := server.New(lifecycle, onboard.NewSeeder(log), publisher, server.Config{
		Addr:                cfg.Server.Addr,
		GitHubWebhookSecret: cfg.Server.GitHubWebhookSecret,
		GitLabWebhookToken:  cfg.Server.GitLabWebhookToken,
		Hosting:             cfg.Hosting,
		Logger:              log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
