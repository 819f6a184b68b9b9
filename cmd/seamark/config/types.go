// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

// SeamarkConfig is the full configuration surface of the toolkit.
//
// Values are layered: compiled defaults, then ~/.seamark/seamark.yaml,
// then environment variables. The envconfig tags name the variables the
// shell scripts around the stack already use.
type SeamarkConfig struct {
	// Cluster: the search cluster's control API.
	Cluster ClusterConfig `yaml:"cluster"`

	// Search: index, pipeline, and model identifiers.
	Search SearchConfig `yaml:"search"`

	// Services: container names of the stack's moving parts.
	Services ServicesConfig `yaml:"services"`

	// Ollama: local answer-model server.
	Ollama OllamaConfig `yaml:"ollama"`
}

type ClusterConfig struct {
	URL      string `yaml:"url" envconfig:"ES_URL"`
	Username string `yaml:"username" envconfig:"ES_USER"`

	// Password also honors ELASTIC_PASSWORD; see Load.
	Password string `yaml:"password" envconfig:"ES_PASS"`
}

type SearchConfig struct {
	Index    string `yaml:"index" envconfig:"ES_INDEX"`
	Pipeline string `yaml:"pipeline" envconfig:"ES_INGEST_PIPELINE"`
	ModelID  string `yaml:"model_id" envconfig:"ELSER_MODEL_ID"`

	// ExpansionField is the rank-features field queried by search.
	ExpansionField string `yaml:"expansion_field" envconfig:"ES_ELSER_FIELD"`
}

type ServicesConfig struct {
	// Ingest is the compose service that moves rows into the index.
	Ingest string `yaml:"ingest" envconfig:"LS_SERVICE"`

	// Cluster is the search cluster's own container name.
	Cluster string `yaml:"cluster" envconfig:"ES_CONTAINER"`
}

type OllamaConfig struct {
	Host  string `yaml:"host" envconfig:"OLLAMA_HOST"`
	Model string `yaml:"model" envconfig:"OLLAMA_MODEL"`
}

// DefaultConfig returns the compiled-in defaults, matching the stock
// single-node compose deployment.
func DefaultConfig() SeamarkConfig {
	return SeamarkConfig{
		Cluster: ClusterConfig{
			URL:      "http://localhost:9200",
			Username: "elastic",
			Password: "changeme",
		},
		Search: SearchConfig{
			Index:          "seamark_elser_index",
			Pipeline:       "elser_seamark_pipeline",
			ModelID:        ".elser_model_2",
			ExpansionField: "ml.tokens",
		},
		Services: ServicesConfig{
			Ingest:  "ls01",
			Cluster: "es01",
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.1:8b",
		},
	}
}
