// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/packetpilot/sidecar/internal/agent"
	"github.com/packetpilot/sidecar/internal/bridge"
	"github.com/packetpilot/sidecar/internal/config"
	"github.com/packetpilot/sidecar/internal/provider"
	"github.com/packetpilot/sidecar/internal/provider/openrouter"
	"github.com/packetpilot/sidecar/internal/server"
	"github.com/packetpilot/sidecar/internal/tools"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sidecar HTTP server",
		Long:  "Load configuration, connect to the dissection backend and LLM provider, and serve the analysis API.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, err := resolveConfigPath(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	log := newLogger(cmd)

	orClient, err := openrouter.New(openrouter.Config{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
	})
	if err != nil {
		return pperr.Wrap(err, pperr.CodeCLISetupFailure, "initializing provider")
	}

	retryClient := provider.NewRetryClient(orClient, provider.RetryPolicy{
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}, log)

	backend := bridge.New(cfg.Bridge.URL, time.Duration(cfg.Bridge.TimeoutMS)*time.Millisecond)
	registry := tools.NewRegistry(backend)

	analyzer := agent.New(agent.Options{
		Client:       retryClient,
		Registry:     registry,
		Backend:      backend,
		Policy:       agent.PolicyFromConfig(cfg.Loop),
		Model:        cfg.Provider.Model,
		MaxTokens:    cfg.Provider.MaxTokens,
		GuardrailMax: cfg.Guardrail.MaxArgChars,
		Log:          log,
	})

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, analyzer, backend, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("packetpilot-ai starting",
		"listen", cfg.Server.Listen,
		"bridge", cfg.Bridge.URL,
		"model", cfg.Provider.Model)

	return srv.Start(ctx)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
