// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seamark-labs/seamark/pkg/docstore"
)

// defaultStorePath puts the staging database next to the config file.
func defaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	dir := filepath.Join(home, ".seamark")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return filepath.Join(dir, "documents.db"), nil
}

// runLoad reads the spreadsheet and upserts its rows into the staging
// store that the ingest service's source query reads from.
func runLoad(cmd *cobra.Command, args []string) {
	heading(os.Stdout, "Load spreadsheet into document store")

	path := storePath
	if path == "" {
		var err error
		path, err = defaultStorePath()
		if err != nil {
			failf(os.Stderr, "%v", err)
			os.Exit(1)
		}
	}

	loader := NewSheetLoader()
	docs, err := loader.LoadFile(loadFile, loadSheet, loadLimit)
	if err != nil {
		failf(os.Stderr, "%v", err)
		os.Exit(1)
	}
	okf(os.Stdout, "parsed %d rows from %s", len(docs), loadFile)

	store, err := docstore.Open(path)
	if err != nil {
		failf(os.Stderr, "%v", err)
		os.Exit(1)
	}
	defer store.Close()

	ok, failed := store.Upsert(docs)
	if failed > 0 {
		warnf(os.Stdout, "upserted %d documents, %d failed", ok, failed)
	} else {
		okf(os.Stdout, "upserted %d documents into %s", ok, path)
	}

	if total, err := store.Count(); err == nil {
		fmt.Fprintf(os.Stdout, "Store now holds %d documents.\n", total)
	}
	okf(os.Stdout, "run `seamark check` to verify the ingest path, then wait for the next ingest cycle")
}
