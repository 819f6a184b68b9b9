// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides ProcessManager for abstracting external process
execution.

All docker invocations in the container control code go through this
interface so unit tests can capture and verify command invocations and
simulate success/failure without real processes.

# Design Rationale

Direct calls to exec.Command are not testable because they execute real
processes. The container restart fallback path in particular ("compose
restart failed, try docker restart") only ever runs when the primary
mechanism breaks, which is exactly the situation a test must be able to
fabricate.
*/
package main

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ProcessManager handles external process operations.
//
// Implementations must be safe for concurrent use, and must respect
// context cancellation for long-running commands.
type ProcessManager interface {
	// Run executes a command synchronously and returns its combined
	// stdout and stderr output.
	//
	// Combined output matters here: `docker logs` writes the container's
	// log stream to stderr, and restart failures explain themselves on
	// stderr too. The output is returned even when the command fails so
	// callers can display it.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - string: Combined, whitespace-trimmed stdout+stderr
	//   - error: Non-nil if the command fails or is cancelled
	//
	// # Examples
	//
	//   out, err := pm.Run(ctx, "docker", "compose", "restart", "ls01")
	//   if err != nil {
	//       // fall back to a direct container restart
	//   }
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager implements ProcessManager using os/exec.
//
// This is the production implementation that executes real processes on
// the system. Use MockProcessManager in tests instead.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a ProcessManager that executes real
// processes.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command synchronously and returns its combined output.
func (pm *DefaultProcessManager) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	return strings.TrimSpace(combined.String()), err
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting RunFunc before use; it panics when called
// unconfigured. Every invocation is recorded for verification.
//
// # Examples
//
//	mock := &MockProcessManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) (string, error) {
//	        if name == "docker" && args[0] == "ps" {
//	            return "es01\tUp 2 hours", nil
//	        }
//	        return "", fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockProcessManager struct {
	// RunFunc is called when Run is invoked.
	RunFunc func(ctx context.Context, name string, args ...string) (string, error)

	// Calls records all method invocations for verification.
	Calls []ProcessManagerCall

	// mu protects Calls for concurrent access.
	mu sync.Mutex
}

// ProcessManagerCall records a single method invocation.
type ProcessManagerCall struct {
	Name string
	Args []string
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, name string, args ...string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProcessManagerCall{Name: name, Args: args})
	m.mu.Unlock()
	if m.RunFunc == nil {
		panic("MockProcessManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// GetCalls returns a copy of all recorded calls.
func (m *MockProcessManager) GetCalls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ProcessManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance check.
var (
	_ ProcessManager = (*DefaultProcessManager)(nil)
	_ ProcessManager = (*MockProcessManager)(nil)
)
