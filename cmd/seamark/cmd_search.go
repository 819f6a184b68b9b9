// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seamark-labs/seamark/cmd/seamark/config"
)

// runSearch retrieves expansion hits and optionally synthesizes a
// grounded answer. A failed answer never discards the hits; they are
// printed before the answer model is contacted.
func runSearch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Global
	query := strings.Join(args, " ")

	cluster, err := NewClusterClient(cfg.Cluster.URL, cfg.Cluster.Username, cfg.Cluster.Password)
	if err != nil {
		failf(os.Stderr, "cannot build cluster client: %v", err)
		os.Exit(1)
	}

	heading(os.Stdout, fmt.Sprintf("Search: %s", query))
	hits, err := cluster.SearchExpansion(ctx, cfg.Search.Index, cfg.Search.ExpansionField,
		cfg.Search.ModelID, query, searchSize)
	if err != nil {
		if ce, ok := err.(*ClusterError); ok {
			failf(os.Stderr, "%s", ce.FullError())
		} else {
			failf(os.Stderr, "search failed: %v", err)
		}
		os.Exit(1)
	}
	if len(hits) == 0 {
		warnf(os.Stdout, "no hits; is the index populated? (`seamark check` shows the count)")
		return
	}

	for i, hit := range hits {
		fmt.Fprintf(os.Stdout, "%2d. [%.3f] %s (id=%s)\n", i+1, hit.Score, hit.Title, hit.ID)
		fmt.Fprintf(os.Stdout, "    %s\n", truncate(strings.ReplaceAll(hit.Body, "\n", " "), 200))
	}

	if !withAnswer {
		return
	}

	heading(os.Stdout, "Answer")
	answerer := NewOllamaAnswerer(cfg.Ollama.Host, cfg.Ollama.Model)
	if has, err := answerer.HasModel(ctx); err == nil && !has {
		warnf(os.Stdout, "model %s is not pulled; run: ollama pull %s", cfg.Ollama.Model, cfg.Ollama.Model)
	}

	answerContext := BuildAnswerContext(hits, contextChars)
	answer, err := answerer.Answer(ctx, query, answerContext)
	if err != nil {
		// The hits above are still the useful output.
		if ae, ok := err.(*AnswerError); ok {
			warnf(os.Stdout, "answer synthesis failed: %s", ae.FullError())
		} else {
			warnf(os.Stdout, "answer synthesis failed: %v", err)
		}
		return
	}
	fmt.Fprintln(os.Stdout, answer)
}
