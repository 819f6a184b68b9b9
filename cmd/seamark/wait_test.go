// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

// shortSpec keeps polling tests fast while preserving the timing ratios
// of the production 600s/10s budget.
func shortSpec() WaitSpec {
	return WaitSpec{Timeout: 200 * time.Millisecond, Interval: 20 * time.Millisecond}
}

func TestWaitUntil_ReadyOnFirstPoll(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	probe := func(ctx context.Context) (bool, string) {
		calls++
		return true, "ready"
	}

	outcome := WaitUntil(context.Background(), "thing", probe, shortSpec(), &buf)

	if !outcome.Ready {
		t.Fatal("expected Ready=true")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 probe call, got %d", calls)
	}
	if outcome.Polls != 1 {
		t.Errorf("expected Polls=1, got %d", outcome.Polls)
	}
	if !strings.Contains(buf.String(), "[OK] thing: ready") {
		t.Errorf("expected [OK] line, got: %q", buf.String())
	}
}

func TestWaitUntil_ReadyOnKthPoll(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	probe := func(ctx context.Context) (bool, string) {
		calls++
		if calls >= 3 {
			return true, "ready"
		}
		return false, "warming up"
	}

	outcome := WaitUntil(context.Background(), "thing", probe, shortSpec(), &buf)

	if !outcome.Ready {
		t.Fatal("expected Ready=true")
	}
	if calls != 3 {
		t.Errorf("probe must not be called after readiness: want 3 calls, got %d", calls)
	}
	if outcome.Polls != 3 {
		t.Errorf("expected Polls=3, got %d", outcome.Polls)
	}
	waitLines := strings.Count(buf.String(), "[WAIT] thing: warming up")
	if waitLines != 2 {
		t.Errorf("expected 2 [WAIT] lines, got %d", waitLines)
	}
}

func TestWaitUntil_TimeoutCarriesLastStatus(t *testing.T) {
	var buf bytes.Buffer
	spec := shortSpec()
	probe := func(ctx context.Context) (bool, string) {
		return false, "state=starting"
	}

	start := time.Now()
	outcome := WaitUntil(context.Background(), "thing", probe, spec, &buf)
	elapsed := time.Since(start)

	if outcome.Ready {
		t.Fatal("expected Ready=false")
	}
	if outcome.LastStatus != "state=starting" {
		t.Errorf("expected last status preserved, got %q", outcome.LastStatus)
	}
	if elapsed < spec.Timeout {
		t.Errorf("returned before the budget elapsed: %v < %v", elapsed, spec.Timeout)
	}
	// Allow one interval of overshoot plus scheduler slack.
	if elapsed > spec.Timeout+spec.Interval+100*time.Millisecond {
		t.Errorf("overshot the budget by more than one interval: %v", elapsed)
	}
	if !strings.Contains(buf.String(), "[FAIL] thing: timed out") {
		t.Errorf("expected [FAIL] line, got: %q", buf.String())
	}
}

func TestWaitUntil_PollCountWithinTimeoutBounds(t *testing.T) {
	var buf bytes.Buffer
	spec := shortSpec()
	probe := func(ctx context.Context) (bool, string) {
		return false, "nope"
	}

	outcome := WaitUntil(context.Background(), "thing", probe, spec, &buf)

	// 200ms budget at 20ms intervals: the immediate poll plus up to 10
	// more. Scheduling jitter can drop a couple.
	if outcome.Polls < 8 || outcome.Polls > 11 {
		t.Errorf("expected 8-11 polls for a 10-interval budget, got %d", outcome.Polls)
	}
}

func TestWaitUntil_ContextCancelEndsWait(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	probe := func(ctx context.Context) (bool, string) {
		return false, "never"
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := WaitUntil(ctx, "thing", probe, WaitSpec{Timeout: 5 * time.Second, Interval: 20 * time.Millisecond}, &buf)
	elapsed := time.Since(start)

	if outcome.Ready {
		t.Fatal("expected Ready=false after cancellation")
	}
	if elapsed > time.Second {
		t.Errorf("cancellation should end the wait promptly, took %v", elapsed)
	}
}

// TestWaitUntil_DeploymentScenario models the production shape: a
// deployment that reports "starting" for a while and then flips to
// "started" partway through the budget.
func TestWaitUntil_DeploymentScenario(t *testing.T) {
	var buf bytes.Buffer
	spec := WaitSpec{Timeout: 200 * time.Millisecond, Interval: 20 * time.Millisecond}
	flipAt := time.Now().Add(115 * time.Millisecond)
	probe := func(ctx context.Context) (bool, string) {
		if time.Now().After(flipAt) {
			return true, DeploymentStateStarted
		}
		return false, "state=starting"
	}

	outcome := WaitUntil(context.Background(), "model deployment", probe, spec, &buf)

	if !outcome.Ready {
		t.Fatalf("expected convergence within the budget, last status %q", outcome.LastStatus)
	}
	// The flip lands between the 6th and 8th poll depending on jitter.
	if outcome.Polls < 6 || outcome.Polls > 9 {
		t.Errorf("expected success on the poll after the flip (6-9), got %d", outcome.Polls)
	}
}

func TestSleepUntilNextPoll_DeadlinePassed(t *testing.T) {
	if sleepUntilNextPoll(context.Background(), 10*time.Millisecond, time.Now().Add(-time.Second)) {
		t.Error("expected false when the deadline already passed")
	}
}

func TestSleepUntilNextPoll_CapsFinalSleep(t *testing.T) {
	deadline := time.Now().Add(25 * time.Millisecond)
	start := time.Now()
	ok := sleepUntilNextPoll(context.Background(), time.Second, deadline)
	elapsed := time.Since(start)

	if ok {
		t.Error("a sleep landing on the deadline must end the wait")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("final sleep was not capped at the deadline: %v", elapsed)
	}
}
