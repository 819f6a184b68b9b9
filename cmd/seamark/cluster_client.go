// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main contains cluster_client.go which provides the admin client for
the Elasticsearch control API.

# Problem Statement

The stack doctor drives a checklist of provisioning operations against the
cluster's administrative REST surface: trained-model listing and download,
deployment start, ingest-pipeline and index management, document counts,
and the text-expansion search used by `seamark search`. The ML endpoints
have no high-level wrappers worth depending on, and the doctor needs the
raw status code for several of them (401 on the reachability check, 409 on
an already-started deployment, 404 on a missing pipeline or index).

# Solution

ClusterAdmin is a narrow interface over those operations. ClusterClient
implements it on the official go-elasticsearch low-level transport: each
operation builds a plain http.Request with a path-only URL and hands it to
Client.Perform, which resolves the address, applies basic auth, and
retries. The response body is decoded here, close to the endpoint it came
from.

# Error Handling

Failures are reported as *ClusterError with a Type for programmatic
handling, the HTTP status where one was received, and a remediation hint:

	models, err := admin.ListModels(ctx)
	var ce *ClusterError
	if errors.As(err, &ce) && ce.Type == ClusterErrorAuth {
	    // credentials problem, not a connectivity problem
	}

# Related Files

  - stack_doctor.go: the checklist consuming this interface
  - cmd_search.go: the text-expansion query path
*/
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// ClusterErrorType categorizes control API failures.
type ClusterErrorType int

const (
	// ClusterErrorUnreachable indicates the cluster did not answer at all.
	ClusterErrorUnreachable ClusterErrorType = iota

	// ClusterErrorAuth indicates the cluster rejected the credentials.
	ClusterErrorAuth

	// ClusterErrorBadStatus indicates an unexpected HTTP status code.
	ClusterErrorBadStatus

	// ClusterErrorInvalidResponse indicates an unparseable response body.
	ClusterErrorInvalidResponse
)

// String returns the error type as a string for logging.
func (t ClusterErrorType) String() string {
	switch t {
	case ClusterErrorUnreachable:
		return "UNREACHABLE"
	case ClusterErrorAuth:
		return "AUTH_FAILED"
	case ClusterErrorBadStatus:
		return "BAD_STATUS"
	case ClusterErrorInvalidResponse:
		return "INVALID_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// ClusterError provides structured error information for control API calls.
type ClusterError struct {
	// Type categorizes the error for programmatic handling.
	Type ClusterErrorType

	// Op names the operation that failed (e.g., "list trained models").
	Op string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Message is a human-readable error description.
	Message string

	// Detail carries the response body or transport error for debugging.
	Detail string

	// Remediation suggests how to fix the issue.
	Remediation string
}

// Error implements the error interface.
func (e *ClusterError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// FullError returns a detailed error message including remediation.
func (e *ClusterError) FullError() string {
	var buf bytes.Buffer
	buf.WriteString(e.Error())
	if e.Detail != "" {
		buf.WriteString("\n\nDetails: ")
		buf.WriteString(truncate(e.Detail, 1200))
	}
	if e.Remediation != "" {
		buf.WriteString("\n\nTo fix:\n")
		buf.WriteString(e.Remediation)
	}
	return buf.String()
}

// -----------------------------------------------------------------------------
// Data Types
// -----------------------------------------------------------------------------

// ModelRecord is the queryable record of a trained model.
type ModelRecord struct {
	// ID is the model identifier.
	ID string

	// FullyDefined reports whether every definition part has been stored.
	// Nil when the server did not include the field.
	FullyDefined *bool
}

// DeploymentState is a snapshot of a model deployment.
type DeploymentState struct {
	// State is the reported lifecycle state ("starting", "started", ...).
	// Empty when the model has no deployment.
	State string

	// Allocation is the raw allocation status for diagnostics.
	Allocation string
}

// DeploymentStateStarted is the ready-state literal for a deployment.
const DeploymentStateStarted = "started"

// SearchHit is a single result from a text-expansion query.
type SearchHit struct {
	Score     float64
	ID        string
	Title     string
	Body      string
	UpdatedAt string
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ClusterAdmin defines the control API operations the kit depends on.
// Implementations must be safe to call from the sequential checklist and
// must never mutate state in any method not documented as mutating.
type ClusterAdmin interface {
	// Ping checks the root endpoint; returns the raw info body on success.
	Ping(ctx context.Context) (string, error)

	// License fetches the license document for display. Diagnostic only;
	// failures are reported, never fatal.
	License(ctx context.Context) (string, error)

	// ListModels returns the ids of all known trained models.
	ListModels(ctx context.Context) ([]string, error)

	// GetModel fetches the queryable record of one model, including its
	// definition-completeness flag when the server supports it.
	GetModel(ctx context.Context, modelID string) (*ModelRecord, error)

	// StartDownload triggers a model download. Mutating; the download
	// continues in the background after this returns.
	StartDownload(ctx context.Context, modelID string) (string, error)

	// StartDeployment starts a model deployment. Mutating; an
	// already-started conflict is success, not an error. The deployment
	// converges in the background after this returns.
	StartDeployment(ctx context.Context, modelID string, allocations, threads int) (string, error)

	// GetDeployment reports the deployment state of a model.
	GetDeployment(ctx context.Context, modelID string) (*DeploymentState, error)

	// PutPipeline replaces an ingest pipeline. Mutating; last write wins.
	PutPipeline(ctx context.Context, pipelineID string, doc any) (string, error)

	// HasPipeline reports whether an ingest pipeline exists.
	HasPipeline(ctx context.Context, pipelineID string) (bool, error)

	// DeleteIndex deletes an index. Mutating; a missing index is not an
	// error worth surfacing, the caller ignores failures here.
	DeleteIndex(ctx context.Context, index string) (string, error)

	// CreateIndex creates an index with the given schema. Mutating.
	CreateIndex(ctx context.Context, index string, schema any) (string, error)

	// CountDocs returns the document count of an index.
	CountDocs(ctx context.Context, index string) (int64, string, error)

	// SearchExpansion runs a text-expansion query against a rank-features
	// field and returns the top hits.
	SearchExpansion(ctx context.Context, index, field, modelID, query string, size int) ([]SearchHit, error)
}

// -----------------------------------------------------------------------------
// Struct Definition
// -----------------------------------------------------------------------------

// ClusterClient implements ClusterAdmin over the go-elasticsearch
// low-level transport.
type ClusterClient struct {
	es *elasticsearch.Client
}

// NewClusterClient creates a ClusterAdmin for the given endpoint.
//
// # Inputs
//
//   - baseURL: cluster URL (e.g., "http://localhost:9200")
//   - username, password: basic auth credentials
//
// # Outputs
//
//   - *ClusterClient: configured client
//   - error: non-nil if the transport cannot be constructed
func NewClusterClient(baseURL, username, password string) (*ClusterClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{strings.TrimSuffix(baseURL, "/")},
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster transport: %w", err)
	}
	return &ClusterClient{es: es}, nil
}

// -----------------------------------------------------------------------------
// Request Plumbing
// -----------------------------------------------------------------------------

// perform sends one request and returns (status, body) or a *ClusterError.
//
// Requests carry path-only URLs; the transport resolves the address and
// applies basic auth. A 401 anywhere is reported as ClusterErrorAuth so
// callers can distinguish credential problems from connectivity problems.
func (c *ClusterClient) perform(ctx context.Context, op, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, &ClusterError{
				Type:    ClusterErrorInvalidResponse,
				Op:      op,
				Message: "failed to encode request payload",
				Detail:  err.Error(),
			}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return 0, nil, &ClusterError{
			Type:    ClusterErrorUnreachable,
			Op:      op,
			Message: "failed to build request",
			Detail:  err.Error(),
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.es.Perform(req)
	if err != nil {
		return 0, nil, &ClusterError{
			Type:        ClusterErrorUnreachable,
			Op:          op,
			Message:     "cluster not reachable",
			Detail:      err.Error(),
			Remediation: "Check that the cluster is running and ES_URL points at it.",
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  resp.StatusCode,
			Message: "failed to read response body",
			Detail:  err.Error(),
		}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.StatusCode, raw, &ClusterError{
			Type:        ClusterErrorAuth,
			Op:          op,
			Status:      resp.StatusCode,
			Message:     "authentication failed",
			Detail:      string(raw),
			Remediation: "Check ES_USER and ES_PASS (or ELASTIC_PASSWORD).",
		}
	}

	return resp.StatusCode, raw, nil
}

// badStatus builds the error for an unexpected status code.
func badStatus(op string, status int, body []byte) *ClusterError {
	return &ClusterError{
		Type:    ClusterErrorBadStatus,
		Op:      op,
		Status:  status,
		Message: fmt.Sprintf("unexpected HTTP %d", status),
		Detail:  string(body),
	}
}

// ok2xx reports whether a status is an acceptable success for a mutating
// trigger; the control API answers both 200 and 201 depending on version.
func ok2xx(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

// -----------------------------------------------------------------------------
// Cluster & License
// -----------------------------------------------------------------------------

// Ping checks the root endpoint; returns the raw info body on success.
func (c *ClusterClient) Ping(ctx context.Context) (string, error) {
	status, body, err := c.perform(ctx, "cluster reachability", http.MethodGet, "/", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", badStatus("cluster reachability", status, body)
	}
	return string(body), nil
}

// License fetches the license document for display.
func (c *ClusterClient) License(ctx context.Context) (string, error) {
	status, body, err := c.perform(ctx, "license lookup", http.MethodGet, "/_license", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", badStatus("license lookup", status, body)
	}
	return string(body), nil
}

// -----------------------------------------------------------------------------
// Trained Models
// -----------------------------------------------------------------------------

// trainedModelsResponse is the envelope of /_ml/trained_models.
type trainedModelsResponse struct {
	TrainedModelConfigs []struct {
		ModelID      string `json:"model_id"`
		FullyDefined *bool  `json:"fully_defined"`
	} `json:"trained_model_configs"`
}

// ListModels returns the ids of all known trained models.
func (c *ClusterClient) ListModels(ctx context.Context) ([]string, error) {
	const op = "list trained models"
	status, body, err := c.perform(ctx, op, http.MethodGet, "/_ml/trained_models?size=200", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, badStatus(op, status, body)
	}

	var parsed trainedModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  status,
			Message: "failed to parse model list",
			Detail:  err.Error(),
		}
	}

	ids := make([]string, 0, len(parsed.TrainedModelConfigs))
	for _, m := range parsed.TrainedModelConfigs {
		ids = append(ids, m.ModelID)
	}
	return ids, nil
}

// GetModel fetches the queryable record of one model.
//
// The definition_status include asks the server for the fully_defined
// flag; servers that predate it simply omit the field and FullyDefined
// stays nil.
func (c *ClusterClient) GetModel(ctx context.Context, modelID string) (*ModelRecord, error) {
	op := "get trained model " + modelID
	path := fmt.Sprintf("/_ml/trained_models/%s?include=definition_status", url.PathEscape(modelID))
	status, body, err := c.perform(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, badStatus(op, status, body)
	}

	var parsed trainedModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  status,
			Message: "failed to parse model record",
			Detail:  err.Error(),
		}
	}
	if len(parsed.TrainedModelConfigs) == 0 {
		return nil, &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  status,
			Message: "model record missing from response",
			Detail:  truncate(string(body), 400),
		}
	}

	first := parsed.TrainedModelConfigs[0]
	return &ModelRecord{ID: first.ModelID, FullyDefined: first.FullyDefined}, nil
}

// StartDownload triggers a model download from the vendor repository.
func (c *ClusterClient) StartDownload(ctx context.Context, modelID string) (string, error) {
	op := "trigger model download " + modelID
	path := fmt.Sprintf("/_ml/trained_models/%s/_download", url.PathEscape(modelID))
	status, body, err := c.perform(ctx, op, http.MethodPost, path, nil)
	if err != nil {
		return "", err
	}
	if !ok2xx(status) {
		return string(body), badStatus(op, status, body)
	}
	return string(body), nil
}

// deploymentStartPayload is the body of deployment/_start.
type deploymentStartPayload struct {
	NumberOfAllocations  int `json:"number_of_allocations"`
	ThreadsPerAllocation int `json:"threads_per_allocation"`
}

// StartDeployment starts a model deployment.
//
// Starting twice is not an error: the control API answers 409 for an
// already-started deployment and that is treated as success here, so the
// whole step stays idempotent.
func (c *ClusterClient) StartDeployment(ctx context.Context, modelID string, allocations, threads int) (string, error) {
	op := "start deployment " + modelID
	path := fmt.Sprintf("/_ml/trained_models/%s/deployment/_start", url.PathEscape(modelID))
	payload := deploymentStartPayload{
		NumberOfAllocations:  allocations,
		ThreadsPerAllocation: threads,
	}
	status, body, err := c.perform(ctx, op, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	if !ok2xx(status) && status != http.StatusConflict {
		return string(body), badStatus(op, status, body)
	}
	return string(body), nil
}

// modelStatsResponse is the envelope of /_ml/trained_models/<id>/_stats.
type modelStatsResponse struct {
	TrainedModelStats []struct {
		DeploymentStats struct {
			State            string          `json:"state"`
			AllocationStatus json.RawMessage `json:"allocation_status"`
		} `json:"deployment_stats"`
	} `json:"trained_model_stats"`
}

// GetDeployment reports the deployment state of a model.
func (c *ClusterClient) GetDeployment(ctx context.Context, modelID string) (*DeploymentState, error) {
	op := "get deployment state " + modelID
	path := fmt.Sprintf("/_ml/trained_models/%s/_stats", url.PathEscape(modelID))
	status, body, err := c.perform(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, badStatus(op, status, body)
	}

	var parsed modelStatsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  status,
			Message: "failed to parse deployment stats",
			Detail:  err.Error(),
		}
	}
	if len(parsed.TrainedModelStats) == 0 {
		return &DeploymentState{}, nil
	}

	ds := parsed.TrainedModelStats[0].DeploymentStats
	return &DeploymentState{
		State:      ds.State,
		Allocation: string(ds.AllocationStatus),
	}, nil
}

// -----------------------------------------------------------------------------
// Ingest Pipeline
// -----------------------------------------------------------------------------

// PutPipeline replaces an ingest pipeline, last write wins.
func (c *ClusterClient) PutPipeline(ctx context.Context, pipelineID string, doc any) (string, error) {
	op := "put ingest pipeline " + pipelineID
	path := "/_ingest/pipeline/" + url.PathEscape(pipelineID)
	status, body, err := c.perform(ctx, op, http.MethodPut, path, doc)
	if err != nil {
		return "", err
	}
	if !ok2xx(status) {
		return string(body), badStatus(op, status, body)
	}
	return string(body), nil
}

// HasPipeline reports whether an ingest pipeline exists.
func (c *ClusterClient) HasPipeline(ctx context.Context, pipelineID string) (bool, error) {
	op := "get ingest pipeline " + pipelineID
	path := "/_ingest/pipeline/" + url.PathEscape(pipelineID)
	status, body, err := c.perform(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusOK:
		return true, nil
	case status == http.StatusNotFound:
		return false, nil
	default:
		return false, badStatus(op, status, body)
	}
}

// -----------------------------------------------------------------------------
// Index
// -----------------------------------------------------------------------------

// DeleteIndex deletes an index.
func (c *ClusterClient) DeleteIndex(ctx context.Context, index string) (string, error) {
	op := "delete index " + index
	status, body, err := c.perform(ctx, op, http.MethodDelete, "/"+url.PathEscape(index), nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return string(body), badStatus(op, status, body)
	}
	return string(body), nil
}

// CreateIndex creates an index with the given schema.
func (c *ClusterClient) CreateIndex(ctx context.Context, index string, schema any) (string, error) {
	op := "create index " + index
	status, body, err := c.perform(ctx, op, http.MethodPut, "/"+url.PathEscape(index), schema)
	if err != nil {
		return "", err
	}
	if !ok2xx(status) {
		return string(body), badStatus(op, status, body)
	}
	return string(body), nil
}

// countResponse is the envelope of /<index>/_count.
type countResponse struct {
	Count int64 `json:"count"`
}

// CountDocs returns the document count of an index along with the raw
// body for display.
func (c *ClusterClient) CountDocs(ctx context.Context, index string) (int64, string, error) {
	op := "count documents in " + index
	status, body, err := c.perform(ctx, op, http.MethodGet, "/"+url.PathEscape(index)+"/_count", nil)
	if err != nil {
		return 0, "", err
	}
	if status != http.StatusOK {
		return 0, string(body), badStatus(op, status, body)
	}

	var parsed countResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, string(body), &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  status,
			Message: "failed to parse count response",
			Detail:  err.Error(),
		}
	}
	return parsed.Count, string(body), nil
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

// searchResponse is the subset of the search envelope the CLI displays.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				Body      string `json:"body"`
				Content   string `json:"content"`
				UpdatedAt string `json:"updated_at"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchExpansion runs a text-expansion query against a rank-features field.
func (c *ClusterClient) SearchExpansion(ctx context.Context, index, field, modelID, query string, size int) ([]SearchHit, error) {
	op := "search " + index
	payload := map[string]any{
		"size": size,
		"query": map[string]any{
			"text_expansion": map[string]any{
				field: map[string]any{
					"model_id":   modelID,
					"model_text": query,
				},
			},
		},
		"_source": []string{"id", "title", "body", "content", "updated_at"},
	}

	status, body, err := c.perform(ctx, op, http.MethodPost, "/"+url.PathEscape(index)+"/_search", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, badStatus(op, status, body)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ClusterError{
			Type:    ClusterErrorInvalidResponse,
			Op:      op,
			Status:  status,
			Message: "failed to parse search response",
			Detail:  err.Error(),
		}
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		bodyText := h.Source.Body
		if bodyText == "" {
			bodyText = h.Source.Content
		}
		hits = append(hits, SearchHit{
			Score:     h.Score,
			ID:        h.Source.ID,
			Title:     h.Source.Title,
			Body:      bodyText,
			UpdatedAt: h.Source.UpdatedAt,
		})
	}
	return hits, nil
}

// Compile-time interface compliance check.
var _ ClusterAdmin = (*ClusterClient)(nil)
