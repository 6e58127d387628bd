package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/equinix-labs/equinix-docs-mcp-server/internal/auth"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/config"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/logging"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/mcp"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/spec"
	"github.com/equinix-labs/equinix-docs-mcp-server/internal/tools"
)

func main() {
	if err := rootCmd().ExecuteContext(signalContext()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

type rootOptions struct {
	configPath string
	logFormat  string
	logLevel   string

	logger *slog.Logger
	cfg    *config.Config
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "equinix-mcp",
		Short:        "MCP server exposing Equinix APIs as tools",
		Long:         "equinix-mcp merges the configured Equinix OpenAPI specs into one document and serves every operation as an MCP tool over stdio.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = logging.Setup(opts.logFormat, opts.logLevel)
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config/apis.yaml", "path to the API config file")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(serveCmd(opts), refreshCmd(opts), mergeCmd(opts))
	return cmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the merged APIs as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager, err := spec.NewManager(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			if refresh || !manager.HasAllCachedSpecs() {
				opts.logger.Info("refreshing specs before serving")
				if err := manager.UpdateSpecs(ctx); err != nil {
					return err
				}
			}

			merged, err := manager.MergedSpec()
			if err != nil {
				return err
			}
			registry, err := tools.NewRegistry(merged, opts.logger)
			if err != nil {
				return err
			}

			authManager := auth.NewManager(opts.cfg, opts.logger)
			invoker := tools.NewInvoker(serverURL(merged), authManager, opts.logger)
			server := mcp.NewServer(registry, invoker, opts.logger)

			opts.logger.Info("serving MCP over stdio", "tools", registry.Len())
			return server.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a spec refresh before serving")
	return cmd
}

func refreshCmd(opts *rootOptions) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and merge all configured specs",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := spec.NewManager(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			if validate {
				manager.Validate = spec.ValidateRawSpec
			}
			return manager.UpdateSpecs(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "run structural OpenAPI validation on fetched specs (log only)")
	return cmd
}

func mergeCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Write the combined OpenAPI document to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := spec.NewManager(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			if !manager.HasAllCachedSpecs() {
				if err := manager.UpdateSpecs(cmd.Context()); err != nil {
					return err
				}
			}
			path := output
			if path == "" {
				path = opts.cfg.Output.MergedSpecPath
			}
			return manager.WriteMergedSpec(path)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults to output.merged_spec_path)")
	return cmd
}

// serverURL picks the gateway base URL from the merged document.
func serverURL(doc map[string]any) string {
	if servers, ok := doc["servers"].([]any); ok && len(servers) > 0 {
		if server, ok := servers[0].(map[string]any); ok {
			if u, ok := server["url"].(string); ok && u != "" {
				return u
			}
		}
	}
	return "https://api.equinix.com"
}
