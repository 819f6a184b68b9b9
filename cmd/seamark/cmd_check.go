// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seamark-labs/seamark/cmd/seamark/config"
)

// runCheck wires the real dependencies into the stack doctor and exits
// with the step's code on failure.
func runCheck(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Global
	cluster, err := NewClusterClient(cfg.Cluster.URL, cfg.Cluster.Username, cfg.Cluster.Password)
	if err != nil {
		failf(os.Stderr, "cannot build cluster client: %v", err)
		os.Exit(ExitClusterUnreachable)
	}

	doctor := NewStackDoctor(
		cluster,
		NewDockerController(NewDefaultProcessManager()),
		DoctorConfig{
			ModelID:          cfg.Search.ModelID,
			PipelineID:       cfg.Search.Pipeline,
			Index:            cfg.Search.Index,
			IngestService:    cfg.Services.Ingest,
			ClusterContainer: cfg.Services.Cluster,
		},
		os.Stdout,
	)

	mode := ModeReadOnly
	if fixMode {
		mode = ModeFix
	}
	os.Exit(doctor.Run(ctx, mode))
}
