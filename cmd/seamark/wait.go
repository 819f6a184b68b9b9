// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main contains wait.go which provides the bounded polling primitive
used by every convergence-dependent step of the stack doctor.

# Problem Statement

The cluster's mutating commands are asynchronous: a model download trigger
or a deployment start returns immediately while the work continues in the
background. A single point-in-time check right after the trigger would
almost always observe "not ready yet". Every step that depends on eventual
remote-state convergence therefore needs the same loop: probe, report,
sleep, repeat, give up after a wall-clock budget.

# Solution

WaitUntil generalizes that loop as a combinator over a Probe function:

	outcome := WaitUntil(ctx, "model download", probe, WaitSpec{
	    Timeout:  10 * time.Minute,
	    Interval: 10 * time.Second,
	}, os.Stdout)
	if !outcome.Ready {
	    // outcome.LastStatus carries the final observed diagnostic
	}

The probe is called immediately, then once per interval. WaitUntil returns
on the first poll that observes readiness and never calls the probe again
afterward. On timeout it returns only after the budget has elapsed,
carrying the last observed status string for diagnostics.

# Related Files

  - stack_doctor.go: every readiness-gated checklist step
  - cluster_client.go: the remote observations probes are built from
*/
package main

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DefaultWaitTimeout is the per-step convergence budget.
const DefaultWaitTimeout = 600 * time.Second

// DefaultWaitInterval is the pause between probe attempts.
const DefaultWaitInterval = 10 * time.Second

// Probe observes remote state once and reports readiness.
//
// A probe must be idempotent and side-effect-free: it is called repeatedly
// and the status string it returns is shown to the user on every attempt.
// A response body that cannot be parsed is reported as not ready, never as
// an error.
type Probe func(ctx context.Context) (ready bool, status string)

// WaitSpec bounds a polling loop.
type WaitSpec struct {
	// Timeout is the wall-clock budget for the whole wait.
	Timeout time.Duration

	// Interval is the pause between probe attempts.
	Interval time.Duration
}

// DefaultWaitSpec returns the bounds shared by the download and
// deployment readiness waits.
func DefaultWaitSpec() WaitSpec {
	return WaitSpec{
		Timeout:  DefaultWaitTimeout,
		Interval: DefaultWaitInterval,
	}
}

// WaitOutcome is the result of a bounded wait.
type WaitOutcome struct {
	// Ready is true if the probe reported readiness within the budget.
	Ready bool

	// Polls is the number of times the probe was called.
	Polls int

	// LastStatus is the status string from the final probe attempt.
	LastStatus string

	// Elapsed is the wall-clock duration of the wait.
	Elapsed time.Duration
}

// WaitUntil polls a probe at a fixed interval until it reports ready or the
// wall-clock timeout elapses.
//
// # Description
//
// Calls the probe immediately, then once per interval. Returns as soon as
// the probe reports ready; the probe is never called again after that. If
// the probe never becomes ready, WaitUntil returns only once the timeout
// has elapsed (to within one interval), or earlier if ctx is cancelled.
//
// Progress is written to out as it happens: a [WAIT] line per unready
// attempt, [OK] on convergence, [FAIL] on timeout.
//
// # Inputs
//
//   - ctx: cancellation; a cancelled context ends the wait as a failure
//   - desc: human-readable description printed with every progress line
//   - probe: the readiness observation; must be safe to call repeatedly
//   - spec: timeout and interval bounds
//   - out: destination for progress lines
//
// # Outputs
//
//   - WaitOutcome: readiness flag, poll count, last observed status
func WaitUntil(ctx context.Context, desc string, probe Probe, spec WaitSpec, out io.Writer) WaitOutcome {
	start := time.Now()
	deadline := start.Add(spec.Timeout)

	outcome := WaitOutcome{}
	for {
		ready, status := probe(ctx)
		outcome.Polls++
		outcome.LastStatus = status

		if ready {
			outcome.Ready = true
			outcome.Elapsed = time.Since(start)
			fmt.Fprintf(out, "[OK] %s: ready\n", desc)
			return outcome
		}

		fmt.Fprintf(out, "[WAIT] %s: %s\n", desc, status)

		if !sleepUntilNextPoll(ctx, spec.Interval, deadline) {
			outcome.Elapsed = time.Since(start)
			fmt.Fprintf(out, "[FAIL] %s: timed out after %s\n", desc, spec.Timeout)
			return outcome
		}
	}
}

// sleepUntilNextPoll pauses for one interval, capped by the deadline.
//
// Returns false when the deadline has been reached or ctx was cancelled,
// meaning the caller must stop polling. The final sleep is shortened so the
// loop never overshoots the budget by more than one interval.
func sleepUntilNextPoll(ctx context.Context, interval time.Duration, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}

	pause := interval
	if remaining < pause {
		pause = remaining
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(pause):
	}

	// A full-length sleep that lands exactly on the deadline still ends
	// the wait: the budget is spent.
	return time.Now().Before(deadline)
}
