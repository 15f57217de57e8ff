// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// NewRootCmd creates the root packetpilot-ai command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "packetpilot-ai",
		Short:         "PacketPilot AI — packet analysis sidecar",
		Long:          "PacketPilot AI is a local sidecar that answers natural-language questions about packet captures by orchestrating an LLM over dissection tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newServeCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	return root
}

// resolveConfigPath returns the explicit --config path, or the first
// discovered packetpilot.yaml from the standard locations. An empty return
// means run on defaults and environment variables only.
func resolveConfigPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}

	v := viper.New()
	v.SetConfigName("packetpilot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "packetpilot"))
	}
	v.AddConfigPath("/etc/packetpilot")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config anywhere is fine; defaults and env apply.
			return "", nil
		}
		return "", pperr.Errorf(pperr.CodeConfigLoadReadFailure, "reading config: %w", err)
	}

	return v.ConfigFileUsed(), nil
}
