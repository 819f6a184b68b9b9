// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main contains stack_doctor.go which drives the provisioning
checklist that brings the text-expansion search stack into a known-good
state.

# Problem Statement

A working ingest path needs five remote things to hold at once: the
cluster reachable, the expansion model downloaded, its deployment started,
the ingest pipeline pointing at it, and the index mapped with a
rank-features field. Any of them can silently be missing after a fresh
install, a container rebuild, or a credentials change, and the first
visible symptom is usually just "the count stays at 0".

# Solution

StackDoctor runs a fixed, strictly ordered checklist against the control
API and the container runtime:

	 1. container runtime reachable        (fatal: exit 2)
	 2. cluster reachable + license        (fatal: exit 3)
	 3. model exists                       (fatal: exit 4)
	3A. download model                     (fix only; exits 5/6)
	3B. start deployment, wait "started"   (fix only; exits 7/8)
	 4. ingest pipeline applied            (fix only; exit 9)
	 5. index recreated                    (fix only; exit 10)
	 6. ingest service restarted           (fix only; warning only)
	 7. count + log tail                   (always; diagnostic only)

Every step is idempotent or guarded by the run mode, so re-running the
whole doctor after a partial failure is the recovery mechanism. There is
no resume-from-step-N.

# Mode Semantics

The run operates in exactly one mode, threaded explicitly through each
step: ModeReadOnly observes and reports with zero mutating calls;
ModeFix applies every conditional step. There is no per-step override.

# Destructive Steps

Applying the index schema deletes any existing index of that name first
and recreates it. That is deliberate and documented data loss, accepted
so the mapping is always exactly the declared one, and it never runs
outside fix mode.

# Related Files

  - wait.go: the bounded polling primitive used by steps 3A and 3B
  - cluster_client.go: the control API operations
  - container_controller.go: restart-with-fallback and log tail
*/
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

// Exit codes for `seamark check`. Each non-zero code maps to exactly one
// checklist step so scripts wrapping the doctor can tell the failures
// apart.
const (
	ExitOK                    = 0
	ExitRuntimeUnavailable    = 2  // container runtime unreachable
	ExitClusterUnreachable    = 3  // cluster unreachable or auth failed
	ExitModelListFailed       = 4  // trained model listing failed
	ExitDownloadTriggerFailed = 5  // model download trigger rejected
	ExitDownloadTimeout       = 6  // model never became available
	ExitDeployTriggerFailed   = 7  // deployment start rejected
	ExitDeployTimeout         = 8  // deployment never reached "started"
	ExitPipelineApplyFailed   = 9  // ingest pipeline apply failed
	ExitIndexApplyFailed      = 10 // index recreate failed
)

// -----------------------------------------------------------------------------
// Mode
// -----------------------------------------------------------------------------

// Mode selects the run-wide behavior of conditional steps.
type Mode int

const (
	// ModeReadOnly observes and reports; zero mutating calls are made.
	ModeReadOnly Mode = iota

	// ModeFix applies every conditional provisioning step.
	ModeFix
)

// String returns the mode as a human-readable string.
func (m Mode) String() string {
	if m == ModeFix {
		return "ON (--fix)"
	}
	return "OFF (read-only)"
}

// CanMutate reports whether mutating control API calls are permitted.
func (m Mode) CanMutate() bool {
	return m == ModeFix
}

// -----------------------------------------------------------------------------
// Report Types
// -----------------------------------------------------------------------------

// StepStatus is the outcome of one checklist step.
type StepStatus string

const (
	StepPass    StepStatus = "pass"
	StepWarn    StepStatus = "warn"
	StepFail    StepStatus = "fail"
	StepSkipped StepStatus = "skipped"
)

// StepResult records one checklist step's outcome.
type StepResult struct {
	Name   string
	Status StepStatus
	Detail string
}

// CheckReport accumulates step results across a run.
type CheckReport struct {
	// ID uniquely identifies this run in logs.
	ID string

	// Mode is the run mode the report was produced under.
	Mode Mode

	// Steps holds one result per executed step, in execution order.
	Steps []StepResult
}

// GenerateID creates a unique identifier for a doctor run.
//
// 8 random bytes as hex; shorter than a UUID for readability, with a
// timestamp fallback if crypto/rand fails.
func GenerateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000")))[:16]
	}
	return hex.EncodeToString(b)
}

// -----------------------------------------------------------------------------
// Doctor
// -----------------------------------------------------------------------------

// DoctorConfig carries the identifiers and budgets the checklist operates
// on. All fields have environment-backed defaults; see the config package.
type DoctorConfig struct {
	// ModelID is the trained model the stack depends on.
	ModelID string

	// PipelineID is the ingest pipeline name.
	PipelineID string

	// Index is the search index name.
	Index string

	// IngestService is the compose service name of the ingest process.
	IngestService string

	// ClusterContainer is the search cluster's own container name,
	// checked for presence in the runtime listing.
	ClusterContainer string

	// Allocations and Threads size the deployment start request.
	Allocations int
	Threads     int

	// Wait bounds the download and deployment readiness polls.
	Wait WaitSpec

	// RestartSettle is how long to wait after a restart before the
	// verification steps, giving the ingest service time to reconnect.
	RestartSettle time.Duration

	// LogTailLines bounds the verification log tail.
	LogTailLines int
}

// DefaultDoctorTuning fills the non-identifier knobs of a DoctorConfig.
func DefaultDoctorTuning(cfg *DoctorConfig) {
	if cfg.Allocations == 0 {
		cfg.Allocations = 1
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.Wait.Timeout == 0 {
		cfg.Wait = DefaultWaitSpec()
	}
	if cfg.RestartSettle == 0 {
		cfg.RestartSettle = 20 * time.Second
	}
	if cfg.LogTailLines == 0 {
		cfg.LogTailLines = 160
	}
}

// logNeedles are the relevance keywords the verification log tail is
// filtered by: indexing failures, pipeline/inference errors, and the
// ingest service's source-query activity.
var logNeedles = []string{
	"Could not index event",
	"status_exception",
	"pipeline",
	"inference",
	"ml",
	"sql",
	"SELECT",
}

// StackDoctor sequences the provisioning checklist.
//
// All true state lives in the control plane and the service logs; the
// doctor holds only its dependencies and the accumulated report.
type StackDoctor struct {
	cluster    ClusterAdmin
	containers ContainerController
	cfg        DoctorConfig
	out        io.Writer

	// settle pauses after a restart; injected so tests skip the wait.
	settle func(ctx context.Context, d time.Duration)

	report *CheckReport
}

// NewStackDoctor creates a doctor with the given dependencies.
//
// # Inputs
//
//   - cluster: control API operations
//   - containers: container runtime control
//   - cfg: identifiers and budgets; zero-valued knobs get defaults
//   - out: destination for progress output, written as it happens
func NewStackDoctor(cluster ClusterAdmin, containers ContainerController, cfg DoctorConfig, out io.Writer) *StackDoctor {
	DefaultDoctorTuning(&cfg)
	return &StackDoctor{
		cluster:    cluster,
		containers: containers,
		cfg:        cfg,
		out:        out,
		settle: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Report returns the accumulated step results of the last Run.
func (d *StackDoctor) Report() *CheckReport {
	return d.report
}

// record appends a step result and prints it in the appropriate register.
func (d *StackDoctor) record(name string, status StepStatus, detail string) {
	d.report.Steps = append(d.report.Steps, StepResult{Name: name, Status: status, Detail: detail})
	switch status {
	case StepPass:
		okf(d.out, "%s", detail)
	case StepWarn:
		warnf(d.out, "%s", detail)
	case StepFail:
		failf(d.out, "%s", detail)
	case StepSkipped:
		okf(d.out, "%s", detail)
	}
}

// Run executes the whole checklist in the given mode and returns the
// process exit code.
//
// Steps run strictly in order; each fatal failure returns its distinct
// exit code immediately. The verification step always runs when reached,
// regardless of mode, so a read-only run still produces evidence.
func (d *StackDoctor) Run(ctx context.Context, mode Mode) int {
	d.report = &CheckReport{ID: GenerateID(), Mode: mode}

	heading(d.out, "0) Mode")
	fmt.Fprintf(d.out, "Fix mode: %s\n", mode)

	if code := d.checkRuntime(ctx); code != ExitOK {
		return code
	}
	if code := d.checkCluster(ctx); code != ExitOK {
		return code
	}
	present, code := d.checkModelPresence(ctx)
	if code != ExitOK {
		return code
	}
	if code := d.ensureModelDownloaded(ctx, mode, present); code != ExitOK {
		return code
	}
	if code := d.ensureDeployment(ctx, mode); code != ExitOK {
		return code
	}
	if code := d.ensurePipeline(ctx, mode); code != ExitOK {
		return code
	}
	if code := d.ensureIndex(ctx, mode); code != ExitOK {
		return code
	}
	d.restartIngest(ctx, mode)
	d.verify(ctx)

	heading(d.out, "DONE")
	okf(d.out, "If the count is still 0, re-run and share the restart and verification sections.")
	return ExitOK
}

// -----------------------------------------------------------------------------
// Checklist Steps
// -----------------------------------------------------------------------------

// checkRuntime verifies the container runtime answers at all. Everything
// after this step assumes containers can be inspected and restarted, so a
// dead runtime aborts the run.
func (d *StackDoctor) checkRuntime(ctx context.Context) int {
	heading(d.out, "1) Containers: runtime & basic status")

	out, err := d.containers.ListContainers(ctx)
	if err != nil {
		d.record("runtime", StepFail, fmt.Sprintf("container runtime unavailable: %v", err))
		fmt.Fprintln(d.out, out)
		return ExitRuntimeUnavailable
	}
	fmt.Fprintln(d.out, out)
	d.record("runtime", StepPass, "container runtime reachable")

	// Absence here is a warning: the cluster may be running outside the
	// local runtime, and step 2 settles reachability either way.
	for _, name := range []string{d.cfg.ClusterContainer, d.cfg.IngestService} {
		if name != "" && !strings.Contains(out, name) {
			d.record("runtime", StepWarn, "expected container not in listing: "+name)
		}
	}
	return ExitOK
}

// checkCluster verifies the control API answers its root endpoint with
// the configured credentials. Connectivity and auth failures are both
// fatal here: every subsequent step depends on this call succeeding.
func (d *StackDoctor) checkCluster(ctx context.Context) int {
	heading(d.out, "2) Cluster: reachability + license")

	info, err := d.cluster.Ping(ctx)
	if err != nil {
		detail := err.Error()
		if ce, ok := err.(*ClusterError); ok {
			detail = ce.FullError()
		}
		d.record("cluster", StepFail, "cluster not reachable or auth failed: "+detail)
		return ExitClusterUnreachable
	}
	d.record("cluster", StepPass, "cluster reachable (auth OK)")
	fmt.Fprintln(d.out, prettyJSON(info, 900))

	// License display is diagnostic only.
	if lic, err := d.cluster.License(ctx); err != nil {
		warnf(d.out, "license lookup failed: %v", err)
	} else {
		fmt.Fprintln(d.out, prettyJSON(lic, 1200))
	}
	return ExitOK
}

// checkModelPresence lists trained models and tests membership. Never
// mutates; absence is reported, not fatal.
func (d *StackDoctor) checkModelPresence(ctx context.Context) (bool, int) {
	heading(d.out, "3) Model: list trained models, check presence")

	models, err := d.cluster.ListModels(ctx)
	if err != nil {
		d.record("model-list", StepFail, fmt.Sprintf("cannot list trained models: %v", err))
		return false, ExitModelListFailed
	}

	fmt.Fprintln(d.out, "Known trained models (first 40):")
	for i, id := range models {
		if i >= 40 {
			break
		}
		fmt.Fprintf(d.out, "  - %s\n", id)
	}

	present := false
	for _, id := range models {
		if id == d.cfg.ModelID {
			present = true
			break
		}
	}
	if present {
		d.record("model-presence", StepPass, "model found: "+d.cfg.ModelID)
	} else {
		d.record("model-presence", StepWarn, "model NOT found: "+d.cfg.ModelID)
	}
	return present, ExitOK
}

// ensureModelDownloaded triggers the download and waits for the model
// record to become fully defined. Runs only in fix mode and only when
// the presence check failed.
func (d *StackDoctor) ensureModelDownloaded(ctx context.Context, mode Mode, present bool) int {
	if !mode.CanMutate() || present {
		return ExitOK
	}

	heading(d.out, "3A) Download model")
	body, err := d.cluster.StartDownload(ctx, d.cfg.ModelID)
	fmt.Fprintln(d.out, prettyJSON(body, 1600))
	if err != nil {
		d.record("model-download", StepFail, fmt.Sprintf("download trigger failed: %v", err))
		return ExitDownloadTriggerFailed
	}

	outcome := WaitUntil(ctx, "model availability", d.downloadProbe(), d.cfg.Wait, d.out)
	if !outcome.Ready {
		d.record("model-download", StepFail,
			fmt.Sprintf("model never became available (last status: %s)", outcome.LastStatus))
		return ExitDownloadTimeout
	}
	d.record("model-download", StepPass, "model downloaded: "+d.cfg.ModelID)
	return ExitOK
}

// downloadProbe observes whether a queryable, fully defined record of the
// model exists yet.
//
// When the server reports a definition-completeness flag it is honored;
// otherwise any parseable model record counts as ready, matching the
// weaker behavior of older servers. Errors and unparseable bodies read
// as "not ready yet".
func (d *StackDoctor) downloadProbe() Probe {
	return func(ctx context.Context) (bool, string) {
		rec, err := d.cluster.GetModel(ctx, d.cfg.ModelID)
		if err != nil {
			if ce, ok := err.(*ClusterError); ok && ce.Status != 0 {
				return false, fmt.Sprintf("HTTP %d", ce.Status)
			}
			return false, err.Error()
		}
		if rec.FullyDefined != nil {
			if *rec.FullyDefined {
				return true, "model fully defined"
			}
			return false, "definition incomplete"
		}
		return true, "model record exists"
	}
}

// ensureDeployment starts the deployment and waits for the "started"
// state. In read-only mode the start is skipped but the state is still
// queried and displayed as a diagnostic.
func (d *StackDoctor) ensureDeployment(ctx context.Context, mode Mode) int {
	heading(d.out, "3B) Deployment: start (if --fix) and verify state")

	if !mode.CanMutate() {
		d.record("deployment", StepSkipped, "skipping deployment changes (read-only mode)")
		if state, err := d.cluster.GetDeployment(ctx, d.cfg.ModelID); err == nil {
			fmt.Fprintf(d.out, "Deployment state: %s alloc=%s\n", state.State, state.Allocation)
		}
		return ExitOK
	}

	body, err := d.cluster.StartDeployment(ctx, d.cfg.ModelID, d.cfg.Allocations, d.cfg.Threads)
	fmt.Fprintln(d.out, prettyJSON(body, 1600))
	if err != nil {
		d.record("deployment", StepFail, fmt.Sprintf("deployment start failed: %v", err))
		return ExitDeployTriggerFailed
	}

	outcome := WaitUntil(ctx, "model deployment", d.deploymentProbe(), d.cfg.Wait, d.out)
	if !outcome.Ready {
		d.record("deployment", StepFail,
			fmt.Sprintf("deployment never reached %q (last status: %s)", DeploymentStateStarted, outcome.LastStatus))
		return ExitDeployTimeout
	}
	d.record("deployment", StepPass, "deployment started")
	return ExitOK
}

// deploymentProbe observes whether the deployment reports the
// ready-state literal.
func (d *StackDoctor) deploymentProbe() Probe {
	return func(ctx context.Context) (bool, string) {
		state, err := d.cluster.GetDeployment(ctx, d.cfg.ModelID)
		if err != nil {
			if ce, ok := err.(*ClusterError); ok && ce.Status != 0 {
				return false, fmt.Sprintf("HTTP %d: %s", ce.Status, truncate(ce.Detail, 120))
			}
			return false, err.Error()
		}
		if state.State == DeploymentStateStarted {
			return true, DeploymentStateStarted
		}
		return false, fmt.Sprintf("state=%s, alloc=%s", state.State, state.Allocation)
	}
}

// ensurePipeline applies the expansion pipeline. Fix mode replaces the
// document unconditionally (last write wins); read-only mode only checks
// existence and downgrades "not found" to a warning.
func (d *StackDoctor) ensurePipeline(ctx context.Context, mode Mode) int {
	heading(d.out, "4) Ingest pipeline: ensure it targets the model (if --fix)")

	if !mode.CanMutate() {
		exists, err := d.cluster.HasPipeline(ctx, d.cfg.PipelineID)
		switch {
		case err != nil:
			d.record("pipeline", StepWarn, fmt.Sprintf("pipeline check failed: %v", err))
		case exists:
			d.record("pipeline", StepPass, "ingest pipeline exists: "+d.cfg.PipelineID)
		default:
			d.record("pipeline", StepWarn, "ingest pipeline missing: "+d.cfg.PipelineID)
		}
		return ExitOK
	}

	doc := ExpansionPipeline(d.cfg.ModelID)
	body, err := d.cluster.PutPipeline(ctx, d.cfg.PipelineID, doc)
	fmt.Fprintln(d.out, prettyJSON(body, 1200))
	if err != nil {
		d.record("pipeline", StepFail, fmt.Sprintf("failed to apply ingest pipeline %s: %v", d.cfg.PipelineID, err))
		return ExitPipelineApplyFailed
	}
	d.record("pipeline", StepPass, "ingest pipeline ready: "+d.cfg.PipelineID)
	return ExitOK
}

// ensureIndex recreates the index with the expansion mapping. Delete
// errors are ignored (absence of a prior index is the common case) and
// the create proceeds regardless. Never runs outside fix mode.
func (d *StackDoctor) ensureIndex(ctx context.Context, mode Mode) int {
	heading(d.out, "5) Index mapping: ensure rank_features mapping (if --fix)")

	if !mode.CanMutate() {
		d.record("index", StepSkipped, "skipping index recreation (read-only mode)")
		return ExitOK
	}

	// Destructive on purpose: recreating is the only way to guarantee
	// the mapping matches the declared schema.
	delBody, _ := d.cluster.DeleteIndex(ctx, d.cfg.Index)
	fmt.Fprintln(d.out, prettyJSON(delBody, 600))

	body, err := d.cluster.CreateIndex(ctx, d.cfg.Index, ExpansionIndexSchema())
	fmt.Fprintln(d.out, prettyJSON(body, 1200))
	if err != nil {
		d.record("index", StepFail, fmt.Sprintf("failed to create index %s: %v", d.cfg.Index, err))
		return ExitIndexApplyFailed
	}
	d.record("index", StepPass, "index ready: "+d.cfg.Index)
	return ExitOK
}

// restartIngest restarts the ingest service so it picks up the new
// pipeline and index. Restart failures (both mechanisms) are warnings:
// the verification evidence that follows is still worth collecting.
func (d *StackDoctor) restartIngest(ctx context.Context, mode Mode) {
	heading(d.out, "6) Restart ingest service (if --fix)")

	if !mode.CanMutate() {
		d.record("restart", StepSkipped, "skipping restart (read-only mode)")
		return
	}

	mechanism, transcript, err := d.containers.RestartService(ctx, d.cfg.IngestService)
	fmt.Fprintln(d.out, truncate(transcript, 1200))
	if err != nil {
		d.record("restart", StepWarn, fmt.Sprintf("restart failed: %v", err))
		return
	}
	if mechanism == RestartViaDirect {
		d.record("restart", StepWarn, "compose restart failed; direct container restart succeeded")
	} else {
		d.record("restart", StepPass, "ingest service restarted via "+mechanism.String())
	}

	d.settle(ctx, d.cfg.RestartSettle)
}

// verify queries the document count and tails the ingest service's logs.
// Purely diagnostic: always runs when reached, never mutates, and its
// failures are warnings.
func (d *StackDoctor) verify(ctx context.Context) {
	heading(d.out, "7) Verification: document count + recent ingest evidence")

	_, countBody, err := d.cluster.CountDocs(ctx, d.cfg.Index)
	if err != nil {
		d.record("verify-count", StepWarn, fmt.Sprintf("count query failed: %v", err))
	} else {
		fmt.Fprintln(d.out, prettyJSON(countBody, 800))
		d.record("verify-count", StepPass, "document count queried")
	}

	logs, err := d.containers.TailLogs(ctx, d.cfg.IngestService, d.cfg.LogTailLines)
	if err != nil {
		d.record("verify-logs", StepWarn, fmt.Sprintf("log tail failed: %v", err))
		fmt.Fprintln(d.out, truncate(logs, 1200))
		return
	}

	relevant := FilterLogLines(logs, logNeedles, 140)
	if len(relevant) == 0 {
		// No matching lines: show the raw tail end instead.
		if len(logs) > 1200 {
			logs = logs[len(logs)-1200:]
		}
		fmt.Fprintln(d.out, logs)
	} else {
		for _, line := range relevant {
			fmt.Fprintln(d.out, line)
		}
	}
	d.record("verify-logs", StepPass, "recent ingest evidence collected")
}
