// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearSeamarkEnv unsets every override so file and default layering can
// be observed in isolation.
func clearSeamarkEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"ES_URL", "ES_USER", "ES_PASS", "ELASTIC_PASSWORD",
		"ES_INDEX", "ES_INGEST_PIPELINE", "ELSER_MODEL_ID", "ES_ELSER_FIELD",
		"LS_SERVICE", "ES_CONTAINER", "OLLAMA_HOST", "OLLAMA_MODEL",
	} {
		// t.Setenv registers the restore; empty value still counts as
		// set, so unset explicitly afterwards.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func tempPathFn(t *testing.T) func() (string, error) {
	path := filepath.Join(t.TempDir(), "seamark.yaml")
	return func() (string, error) { return path, nil }
}

func TestLoadInternal_FirstRunCreatesDefaults(t *testing.T) {
	clearSeamarkEnv(t)
	pathFn := tempPathFn(t)

	var cfg SeamarkConfig
	require.NoError(t, loadInternal(&cfg, pathFn))

	path, _ := pathFn()
	_, err := os.Stat(path)
	assert.NoError(t, err, "the config file must be created on first run")

	assert.Equal(t, "http://localhost:9200", cfg.Cluster.URL)
	assert.Equal(t, "elastic", cfg.Cluster.Username)
	assert.Equal(t, ".elser_model_2", cfg.Search.ModelID)
	assert.Equal(t, "ml.tokens", cfg.Search.ExpansionField)
	assert.Equal(t, "ls01", cfg.Services.Ingest)
	assert.Equal(t, "llama3.1:8b", cfg.Ollama.Model)
}

func TestLoadInternal_FileOverridesDefaults(t *testing.T) {
	clearSeamarkEnv(t)
	path := filepath.Join(t.TempDir(), "seamark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"cluster:\n  url: http://es.internal:9200\nsearch:\n  index: custom_index\n"), 0644))

	var cfg SeamarkConfig
	require.NoError(t, loadInternal(&cfg, func() (string, error) { return path, nil }))

	assert.Equal(t, "http://es.internal:9200", cfg.Cluster.URL)
	assert.Equal(t, "custom_index", cfg.Search.Index)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "elastic", cfg.Cluster.Username)
}

func TestLoadInternal_EnvOverridesFile(t *testing.T) {
	clearSeamarkEnv(t)
	path := filepath.Join(t.TempDir(), "seamark.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster:\n  url: http://from-file:9200\n"), 0644))
	t.Setenv("ES_URL", "http://from-env:9200")
	t.Setenv("ES_INDEX", "env_index")

	var cfg SeamarkConfig
	require.NoError(t, loadInternal(&cfg, func() (string, error) { return path, nil }))

	assert.Equal(t, "http://from-env:9200", cfg.Cluster.URL)
	assert.Equal(t, "env_index", cfg.Search.Index)
}

func TestLoadInternal_ElasticPasswordFallback(t *testing.T) {
	clearSeamarkEnv(t)
	t.Setenv("ELASTIC_PASSWORD", "s3cret")

	var cfg SeamarkConfig
	require.NoError(t, loadInternal(&cfg, tempPathFn(t)))

	assert.Equal(t, "s3cret", cfg.Cluster.Password)
}

func TestLoadInternal_ESPassWinsOverElasticPassword(t *testing.T) {
	clearSeamarkEnv(t)
	t.Setenv("ELASTIC_PASSWORD", "fallback")
	t.Setenv("ES_PASS", "explicit")

	var cfg SeamarkConfig
	require.NoError(t, loadInternal(&cfg, tempPathFn(t)))

	assert.Equal(t, "explicit", cfg.Cluster.Password)
}
