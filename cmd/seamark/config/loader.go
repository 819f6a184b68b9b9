// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the toolkit configuration.
//
// Precedence, lowest to highest: compiled defaults, the YAML file at
// ~/.seamark/seamark.yaml (created with defaults on first run), then
// environment variables. ES_PASS additionally falls back to
// ELASTIC_PASSWORD, the variable the compose deployment itself exports.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global SeamarkConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal(&Global, configFilePath)
	})
	return err
}

func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".seamark", "seamark.yaml"), nil
}

func loadInternal(cfg *SeamarkConfig, pathFn func() (string, error)) error {
	*cfg = DefaultConfig()

	configPath, err := pathFn()
	if err != nil {
		return err
	}
	// create it if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf(" First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read the config file: %w", err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse the config file: %w", err)
	}

	// Environment overrides win over the file.
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	applyPasswordFallback(cfg)
	return nil
}

// applyPasswordFallback honors ELASTIC_PASSWORD when ES_PASS is unset.
// ES_PASS wins when both are present.
func applyPasswordFallback(cfg *SeamarkConfig) {
	if _, explicit := os.LookupEnv("ES_PASS"); explicit {
		return
	}
	if v, ok := os.LookupEnv("ELASTIC_PASSWORD"); ok && v != "" {
		cfg.Cluster.Password = v
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
