// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

// ExpansionPipeline builds the ingest pipeline document that runs the
// content field through the expansion model and writes the resulting
// token weights to ml.tokens.
func ExpansionPipeline(modelID string) map[string]any {
	return map[string]any{
		"description": "Text expansion enrichment for semantic search",
		"processors": []any{
			map[string]any{
				"inference": map[string]any{
					"model_id": modelID,
					"input_output": []any{
						map[string]any{
							"input_field":  "content",
							"output_field": "ml.tokens",
						},
					},
					"inference_config": map[string]any{
						"text_expansion": map[string]any{},
					},
				},
			},
		},
	}
}

// ExpansionIndexSchema builds the index mapping. The ml.tokens field is
// rank_features so the expansion weights are queryable; everything else
// is plain text plus an id keyword and an update timestamp.
func ExpansionIndexSchema() map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":         map[string]any{"type": "keyword"},
				"title":      map[string]any{"type": "text"},
				"body":       map[string]any{"type": "text"},
				"content":    map[string]any{"type": "text"},
				"updated_at": map[string]any{"type": "date"},
				"ml": map[string]any{
					"properties": map[string]any{
						"tokens": map[string]any{"type": "rank_features"},
					},
				},
			},
		},
	}
}
