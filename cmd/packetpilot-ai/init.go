// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/packetpilot/sidecar/internal/config"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a packetpilot.yaml populated with the default settings.

The API key is never written to the file; set OPENROUTER_API_KEY or
PACKETPILOT_PROVIDER_API_KEY in the environment instead.`,
		RunE: runInit,
	}

	cmd.Flags().StringP("output", "o", "", "output path (default ~/.config/packetpilot/packetpilot.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return pperr.Errorf(pperr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "packetpilot", "packetpilot.yaml")
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return pperr.Errorf(pperr.CodeConfigLoadReadFailure,
				"config file already exists at %s; use --force to overwrite", path)
		}
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return pperr.Errorf(pperr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return pperr.Errorf(pperr.CodeConfigLoadReadFailure, "writing config to %s: %w", path, err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return err
}

// defaultConfigYAML renders the built-in defaults as a commented YAML file.
func defaultConfigYAML() ([]byte, error) {
	v := viper.New()
	config.SetDefaults(v)

	settings := map[string]any{
		"server": map[string]any{
			"listen":       v.GetString("server.listen"),
			"cors_origins": v.GetStringSlice("server.cors_origins"),
		},
		"bridge": map[string]any{
			"url":        v.GetString("bridge.url"),
			"timeout_ms": v.GetInt("bridge.timeout_ms"),
		},
		"provider": map[string]any{
			"base_url":   v.GetString("provider.base_url"),
			"model":      v.GetString("provider.model"),
			"max_tokens": v.GetInt("provider.max_tokens"),
		},
		"loop": map[string]any{
			"max_iterations":  v.GetInt("loop.max_iterations"),
			"max_tool_calls":  v.GetInt("loop.max_tool_calls"),
			"max_wall_ms":     v.GetInt("loop.max_wall_ms"),
			"max_model_calls": v.GetInt("loop.max_model_calls"),
		},
		"retry": map[string]any{
			"base_delay_ms": v.GetInt("retry.base_delay_ms"),
			"max_delay_ms":  v.GetInt("retry.max_delay_ms"),
			"max_attempts":  v.GetInt("retry.max_attempts"),
		},
		"guardrail": map[string]any{
			"max_arg_chars": v.GetInt("guardrail.max_arg_chars"),
		},
	}

	body, err := yaml.Marshal(settings)
	if err != nil {
		return nil, pperr.Errorf(pperr.CodeCLISetupFailure, "rendering default config: %w", err)
	}

	header := "# PacketPilot AI configuration — generated by packetpilot-ai init\n" +
		"# The provider API key is read from OPENROUTER_API_KEY.\n\n"
	return append([]byte(header), body...), nil
}
