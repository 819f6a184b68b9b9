// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	fixMode      bool
	loadFile     string
	loadSheet    string
	loadLimit    int
	storePath    string
	searchSize   int
	withAnswer   bool
	contextChars int

	rootCmd = &cobra.Command{
		Use:   "seamark",
		Short: "A cli to provision and exercise the local semantic search stack",
		Long: `Seamark keeps a docker-composed text-expansion search stack in a
				known-good state: it checks and repairs the model, pipeline, and
				index, stages spreadsheet data for ingest, and runs grounded
				searches against the result.`,
	}

	// --- Stack Health ---
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Diagnose the search stack; add --fix to repair it",
		Long: `check walks the provisioning checklist: container runtime, cluster
				reachability, expansion model, deployment, ingest pipeline, index
				mapping, ingest service, and finally the document count and recent
				ingest logs. Without --fix nothing is changed.

				WARNING: --fix recreates the index, deleting any indexed documents.
				They are re-indexed from the staging store on the next ingest run.`,
		Run: runCheck, // Defined in cmd_check.go
	}

	// --- Data Loading ---
	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Stage spreadsheet rows into the local document store",
		Run:   runLoad, // Defined in cmd_load.go
	}

	// --- Search ---
	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Run a semantic search; add --answer for a grounded LLM answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch, // Defined in cmd_search.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&fixMode, "fix", false,
		"Apply fixes (download/deploy model, rewrite pipeline, RECREATE index, restart ingest)")

	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "Path to the .xlsx file to load (required)")
	loadCmd.Flags().StringVar(&loadSheet, "sheet", "", "Sheet name (default: first sheet)")
	loadCmd.Flags().IntVar(&loadLimit, "limit", 0, "Maximum rows to load (0 = all)")
	loadCmd.Flags().StringVar(&storePath, "store", "", "Document store path (default: ~/.seamark/documents.db)")
	_ = loadCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchSize, "size", 5, "Number of hits to retrieve")
	searchCmd.Flags().BoolVar(&withAnswer, "answer", false, "Synthesize a grounded answer from the hits via Ollama")
	searchCmd.Flags().IntVar(&contextChars, "context-chars", DefaultContextChars,
		"Maximum characters of hit text passed to the answer model")
}
