// Package config loads project configuration for rosetta-mark.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//  1. rosetta.yaml in the project root (optional)
//  2. ROSETTA_* environment variables
//  3. command-line flags
//
// The result is a plain Project struct passed explicitly into each engine
// call; there is no process-wide configuration state.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the project configuration file base name (rosetta.yaml).
const FileName = "rosetta"

// Project holds the resolved configuration.
type Project struct {
	// Provider is the AI provider ID (openai, gemini, anthropic, ...).
	Provider string `mapstructure:"provider"`
	// Model overrides the provider's default model.
	Model string `mapstructure:"model"`
	// BaseURL overrides the provider's endpoint (custom-openai).
	BaseURL string `mapstructure:"base_url"`
	// SourceLang is the source language code ("" = auto-detect).
	SourceLang string `mapstructure:"source_lang"`
	// TargetLang is the default translation target.
	TargetLang string `mapstructure:"target_lang"`
	// Concurrency caps in-flight translation calls (1–10).
	Concurrency int `mapstructure:"concurrency"`
	// MaxRetries is the per-unit retry attempt count.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxTokens is the document size ceiling.
	MaxTokens int `mapstructure:"max_tokens"`
	// SystemPrompt overrides the built-in document prompt.
	SystemPrompt string `mapstructure:"system_prompt"`
}

// Load resolves the project configuration for the given root directory.
// flags may be nil; when present its values take highest priority.
func Load(root string, flags *pflag.FlagSet) (*Project, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(root)

	v.SetDefault("provider", "openai")
	v.SetDefault("target_lang", "")
	v.SetDefault("concurrency", 3)
	v.SetDefault("max_retries", 3)
	v.SetDefault("max_tokens", 100000)

	v.SetEnvPrefix("ROSETTA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.yaml: %w", FileName, err)
		}
	}

	// Bind dash-named flags to their underscore config keys; a flag only
	// overrides the file/env value when it was actually set.
	if flags != nil {
		bindings := map[string]string{
			"provider":      "provider",
			"model":         "model",
			"base_url":      "base-url",
			"source_lang":   "source-lang",
			"target_lang":   "target-lang",
			"concurrency":   "concurrency",
			"max_retries":   "max-retries",
			"max_tokens":    "max-tokens",
			"system_prompt": "system-prompt",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", name, err)
				}
			}
		}
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	p.clamp()
	return &p, nil
}

// clamp forces numeric settings back into their documented ranges.
func (p *Project) clamp() {
	if p.Concurrency < 1 {
		p.Concurrency = 3
	}
	if p.Concurrency > 10 {
		p.Concurrency = 10
	}
	if p.MaxRetries < 1 {
		p.MaxRetries = 3
	}
	if p.MaxTokens < 1 {
		p.MaxTokens = 100000
	}
}
