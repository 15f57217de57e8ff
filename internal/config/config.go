// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	pperr "github.com/packetpilot/sidecar/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level sidecar configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Guardrail GuardrailConfig `mapstructure:"guardrail"`
}

// ServerConfig controls the sidecar's own HTTP surface.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// BridgeConfig points at the local packet-dissection backend.
type BridgeConfig struct {
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// ProviderConfig holds credentials and model selection for the LLM provider.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// LoopConfig sets the four independent orchestration budgets.
// Each budget bounds one resource of a single request; tripping any one of
// them ends the loop with a partial result, not an error.
type LoopConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	MaxToolCalls  int `mapstructure:"max_tool_calls"`
	MaxWallMS     int `mapstructure:"max_wall_ms"`
	MaxModelCalls int `mapstructure:"max_model_calls"`
}

// RetryConfig controls completion-call retry backoff.
type RetryConfig struct {
	BaseDelayMS int `mapstructure:"base_delay_ms"`
	MaxDelayMS  int `mapstructure:"max_delay_ms"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

// GuardrailConfig bounds tool arguments before execution.
type GuardrailConfig struct {
	MaxArgChars int `mapstructure:"max_arg_chars"`
}

// SetDefaults installs default values on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8765")
	v.SetDefault("server.cors_origins", []string{
		"http://localhost:1420",
		"http://127.0.0.1:1420",
		"tauri://localhost",
		"https://tauri.localhost",
	})
	v.SetDefault("bridge.url", "http://127.0.0.1:8766")
	v.SetDefault("bridge.timeout_ms", 30000)
	v.SetDefault("provider.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("provider.model", "google/gemini-3-flash-preview")
	v.SetDefault("provider.max_tokens", 1024)
	v.SetDefault("loop.max_iterations", 5)
	v.SetDefault("loop.max_tool_calls", 10)
	v.SetDefault("loop.max_wall_ms", 90000)
	v.SetDefault("loop.max_model_calls", 6)
	v.SetDefault("retry.base_delay_ms", 400)
	v.SetDefault("retry.max_delay_ms", 4000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("guardrail.max_arg_chars", 4000)
}

// SetupEnv binds environment variables (prefix PACKETPILOT) so that
// PACKETPILOT_PROVIDER_API_KEY overrides provider.api_key and so on.
// OPENROUTER_API_KEY is honored as a fallback for the provider key.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("PACKETPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("provider.api_key", "PACKETPILOT_PROVIDER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("provider.model", "PACKETPILOT_PROVIDER_MODEL", "AI_MODEL")
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, pperr.Errorf(pperr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than
// stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateLoop()...)
	errs = append(errs, c.validateRetry()...)

	if c.Guardrail.MaxArgChars <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: guardrail.max_arg_chars must be greater than 0, got %d",
			c.Guardrail.MaxArgChars,
		))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateBridge() []error {
	var errs []error

	if c.Bridge.URL == "" {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "config: bridge.url must not be empty"))
	} else if !strings.HasPrefix(c.Bridge.URL, "http://") && !strings.HasPrefix(c.Bridge.URL, "https://") {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: bridge.url must be an http(s) URL, got %q",
			c.Bridge.URL,
		))
	}

	if c.Bridge.TimeoutMS <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: bridge.timeout_ms must be greater than 0, got %d",
			c.Bridge.TimeoutMS,
		))
	}

	return errs
}

func (c *Config) validateLoop() []error {
	var errs []error

	if c.Loop.MaxIterations <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: loop.max_iterations must be greater than 0, got %d",
			c.Loop.MaxIterations,
		))
	}
	if c.Loop.MaxToolCalls <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: loop.max_tool_calls must be greater than 0, got %d",
			c.Loop.MaxToolCalls,
		))
	}
	if c.Loop.MaxWallMS < 1000 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: loop.max_wall_ms must be at least 1000, got %d",
			c.Loop.MaxWallMS,
		))
	}
	if c.Loop.MaxModelCalls <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: loop.max_model_calls must be greater than 0, got %d",
			c.Loop.MaxModelCalls,
		))
	}

	return errs
}

func (c *Config) validateRetry() []error {
	var errs []error

	if c.Retry.BaseDelayMS <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: retry.base_delay_ms must be greater than 0, got %d",
			c.Retry.BaseDelayMS,
		))
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: retry.max_delay_ms must be at least retry.base_delay_ms, got %d < %d",
			c.Retry.MaxDelayMS, c.Retry.BaseDelayMS,
		))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: retry.max_attempts must be greater than 0, got %d",
			c.Retry.MaxAttempts,
		))
	}

	return errs
}
