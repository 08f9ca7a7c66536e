/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"landuse-agent/internal/agent"
	"landuse-agent/internal/analytics"
	"landuse-agent/internal/api"
	"landuse-agent/internal/config"
	"landuse-agent/internal/database"
	"landuse-agent/internal/llm"
	"landuse-agent/internal/logging"
	"landuse-agent/internal/sqlcheck"
	"landuse-agent/internal/tools"
)

var (
	configFile string
	address    string
	dbPath     string
	provider   string
	model      string
)

var rootCmd = &cobra.Command{
	Use:   "landuse-agent",
	Short: "Land Use Analytics Agent - conversational analytics over land use projections",
	Long: `landuse-agent serves a natural language agent over the RPA land use
transition database. It exposes a chat API backed by an LLM with SQL tools,
a validated SQL explorer, and prebuilt analytics endpoints for dashboards.

All SQL, whether written by the model or by a person, passes a read-only
validation gate before it reaches the database.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "",
		"Path to configuration file")
	rootCmd.Flags().StringVar(&address, "address", "",
		"HTTP listen address (overrides config file)")
	rootCmd.Flags().StringVarP(&dbPath, "database", "d", "",
		"SQLite database path or postgres:// URL (overrides config file)")
	rootCmd.Flags().StringVar(&provider, "provider", "",
		"LLM provider: anthropic or ollama (overrides config file)")
	rootCmd.Flags().StringVar(&model, "model", "",
		"Model name (overrides config file)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	flags := config.CLIFlags{
		ConfigFile:    configFile,
		ConfigFileSet: cmd.Flags().Changed("config"),
		HTTPAddr:      address,
		HTTPAddrSet:   cmd.Flags().Changed("address"),
		DBPath:        dbPath,
		DBPathSet:     cmd.Flags().Changed("database"),
		Provider:      provider,
		ProviderSet:   cmd.Flags().Changed("provider"),
		Model:         model,
		ModelSet:      cmd.Flags().Changed("model"),
	}
	cfg, err := config.LoadConfig(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn("failed to close database", "error", err.Error())
		}
	}()

	catalog, err := database.NewCatalog(ctx, store)
	if err != nil {
		return err
	}

	executor := database.NewExecutor(store,
		time.Duration(cfg.Query.TimeoutSeconds)*time.Second, cfg.Query.MaxRows)
	reports := analytics.NewService(executor)

	gate := sqlcheck.NewSharedOptions(sqlcheck.Options{
		LargeTableRowThreshold: int64(cfg.Query.LargeTableRowThreshold),
		InjectLimit:            cfg.Query.MaxRows,
	})
	registry := tools.NewRegistry()
	registry.Register(tools.RunSQLTool(catalog, executor, gate))
	registry.Register(tools.ListSchemaTool(catalog))
	registry.Register(tools.GetTemplateTool())

	reasoner, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}

	sessions := agent.NewStore(time.Duration(cfg.Agent.SessionTTLSeconds) * time.Second)
	runner := agent.NewRunner(reasoner, registry, sessions,
		cfg.Agent.MaxSteps,
		time.Duration(cfg.Agent.RequestBudgetSeconds)*time.Second,
		cfg.Agent.HistoryLimit)

	server := api.New(*cfg, runner, sessions, catalog, executor, reports, gate)

	// Pick up edits to the config file while running. The runtime tunables
	// (validation thresholds, query limits, loop budgets, session TTL) take
	// effect on the next request; address and database changes still need a
	// restart, which the reload path logs.
	if configFile != "" {
		reloadable := config.NewReloadableConfig(cfg, configFile, flags)
		reloadable.OnReload(func(c *config.Config) {
			gate.Store(sqlcheck.Options{
				LargeTableRowThreshold: int64(c.Query.LargeTableRowThreshold),
				InjectLimit:            c.Query.MaxRows,
			})
			executor.SetLimits(
				time.Duration(c.Query.TimeoutSeconds)*time.Second, c.Query.MaxRows)
			runner.SetBudgets(c.Agent.MaxSteps,
				time.Duration(c.Agent.RequestBudgetSeconds)*time.Second,
				c.Agent.HistoryLimit)
			sessions.SetTTL(time.Duration(c.Agent.SessionTTLSeconds) * time.Second)
		})
		watcher, err := config.NewFileWatcher(configFile, reloadable.Reload)
		if err != nil {
			logging.Warn("config file watching disabled", "error", err.Error())
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx)
	})

	logging.Info("landuse-agent started",
		"address", cfg.HTTP.Address,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"tables", len(catalog.Snapshot().Tables))
	return g.Wait()
}
