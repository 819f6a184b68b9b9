// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main contains container_controller.go which controls the dependent
ingest service's containers.

The ingest service is owned by the container runtime, not by this process:
the kit can only restart it and read its logs. Restarting has two
mechanisms: the orchestrated compose-group restart, and a direct
single-container restart used only as a fallback when the first fails.
Both failing is a warning for the run, never a fatal error, because the
verification steps that follow are still worth running.
*/
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// RestartMechanism identifies which restart path succeeded.
type RestartMechanism int

const (
	// RestartViaCompose is the orchestrated compose-group restart.
	RestartViaCompose RestartMechanism = iota

	// RestartViaDirect is the single-container fallback.
	RestartViaDirect

	// RestartFailed means both mechanisms failed.
	RestartFailed
)

// String returns the mechanism as a human-readable string.
func (m RestartMechanism) String() string {
	switch m {
	case RestartViaCompose:
		return "compose restart"
	case RestartViaDirect:
		return "direct container restart"
	case RestartFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ContainerController abstracts control of the dependent service's
// containers.
type ContainerController interface {
	// ListContainers returns a one-line-per-container summary of running
	// containers, or an error when the container runtime itself is
	// unavailable.
	ListContainers(ctx context.Context) (string, error)

	// RestartService restarts a named service, preferring the compose
	// group restart and falling back to a direct container restart.
	// The combined command output of the attempt(s) is returned either way.
	RestartService(ctx context.Context, service string) (RestartMechanism, string, error)

	// TailLogs returns up to n recent log lines from the service.
	TailLogs(ctx context.Context, service string, n int) (string, error)
}

// DockerController implements ContainerController over the docker CLI.
type DockerController struct {
	proc ProcessManager
}

// NewDockerController creates a ContainerController backed by the docker
// CLI via the given ProcessManager.
func NewDockerController(proc ProcessManager) *DockerController {
	return &DockerController{proc: proc}
}

// ListContainers returns names, status, and ports of running containers.
func (d *DockerController) ListContainers(ctx context.Context) (string, error) {
	out, err := d.proc.Run(ctx, "docker", "ps", "--format", "{{.Names}}\t{{.Status}}\t{{.Ports}}")
	if err != nil {
		return out, fmt.Errorf("docker ps failed: %w", err)
	}
	return out, nil
}

// RestartService restarts a service, falling back from the compose group
// restart to a direct container restart.
func (d *DockerController) RestartService(ctx context.Context, service string) (RestartMechanism, string, error) {
	out, err := d.proc.Run(ctx, "docker", "compose", "restart", service)
	if err == nil {
		return RestartViaCompose, out, nil
	}

	var transcript strings.Builder
	transcript.WriteString(out)
	transcript.WriteString("\n")

	fallbackOut, fallbackErr := d.proc.Run(ctx, "docker", "restart", service)
	transcript.WriteString(fallbackOut)

	if fallbackErr == nil {
		return RestartViaDirect, strings.TrimSpace(transcript.String()), nil
	}

	return RestartFailed, strings.TrimSpace(transcript.String()),
		fmt.Errorf("compose restart failed (%v) and direct restart failed (%v)", err, fallbackErr)
}

// TailLogs returns up to n recent log lines from the service's container.
func (d *DockerController) TailLogs(ctx context.Context, service string, n int) (string, error) {
	out, err := d.proc.Run(ctx, "docker", "logs", "--tail", strconv.Itoa(n), service)
	if err != nil {
		return out, fmt.Errorf("docker logs failed: %w", err)
	}
	return out, nil
}

// FilterLogLines keeps only lines containing one of the needles,
// case-insensitively, preserving order and capping the result at max
// lines (most recent kept).
func FilterLogLines(logs string, needles []string, max int) []string {
	var kept []string
	for _, line := range strings.Split(logs, "\n") {
		lower := strings.ToLower(line)
		for _, n := range needles {
			if strings.Contains(lower, strings.ToLower(n)) {
				kept = append(kept, line)
				break
			}
		}
	}
	if len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}

// Compile-time interface compliance check.
var _ ContainerController = (*DockerController)(nil)
