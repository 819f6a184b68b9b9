// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestCluster(t *testing.T, handler http.HandlerFunc) *ClusterClient {
	t.Helper()
	// The official client verifies the product header on responses.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClusterClient(server.URL, "elastic", "changeme")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestPing_SendsBasicAuth(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "elastic" || pass != "changeme" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"cluster_name":"docker-cluster","version":{"number":"8.13.0"}}`)
	})

	body, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "docker-cluster") {
		t.Errorf("expected the raw info body, got %q", body)
	}
}

func TestPing_AuthFailure(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"type":"security_exception"}}`)
	})

	_, err := client.Ping(context.Background())
	ce, ok := err.(*ClusterError)
	if !ok {
		t.Fatalf("expected a *ClusterError, got %T: %v", err, err)
	}
	if ce.Type != ClusterErrorAuth {
		t.Errorf("expected ClusterErrorAuth, got %v", ce.Type)
	}
	if !strings.Contains(ce.FullError(), "ES_USER") {
		t.Error("expected a credentials remediation hint")
	}
}

func TestPing_Unreachable(t *testing.T) {
	client, err := NewClusterClient("http://127.0.0.1:1", "elastic", "changeme")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	_, err = client.Ping(context.Background())
	ce, ok := err.(*ClusterError)
	if !ok {
		t.Fatalf("expected a *ClusterError, got %T: %v", err, err)
	}
	if ce.Type != ClusterErrorUnreachable {
		t.Errorf("expected ClusterErrorUnreachable, got %v", ce.Type)
	}
}

func TestListModels_ParsesIDs(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_ml/trained_models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("size") != "200" {
			t.Errorf("expected size=200, got %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"count":2,"trained_model_configs":[
			{"model_id":".elser_model_2"},
			{"model_id":"lang_ident_model_1"}
		]}`)
	})

	ids, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != ".elser_model_2" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestGetModel_FullyDefined(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include") != "definition_status" {
			t.Errorf("expected include=definition_status, got %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"trained_model_configs":[{"model_id":".elser_model_2","fully_defined":true}]}`)
	})

	rec, err := client.GetModel(context.Background(), ".elser_model_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.FullyDefined == nil || !*rec.FullyDefined {
		t.Errorf("expected fully_defined=true, got %+v", rec)
	}
}

func TestGetModel_DefinitionFlagAbsent(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"trained_model_configs":[{"model_id":".elser_model_2"}]}`)
	})

	rec, err := client.GetModel(context.Background(), ".elser_model_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.FullyDefined != nil {
		t.Errorf("expected nil FullyDefined for an older server, got %v", *rec.FullyDefined)
	}
}

func TestStartDeployment_ConflictIsSuccess(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]int
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Errorf("unparseable payload: %v", err)
		}
		if payload["number_of_allocations"] != 1 || payload["threads_per_allocation"] != 1 {
			t.Errorf("unexpected payload: %v", payload)
		}
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"reason":"Could not start model deployment because an existing deployment with the same id [.elser_model_2] exist"}}`)
	})

	body, err := client.StartDeployment(context.Background(), ".elser_model_2", 1, 1)
	if err != nil {
		t.Fatalf("409 must be treated as already-started success, got: %v", err)
	}
	if !strings.Contains(body, "existing deployment") {
		t.Errorf("expected the conflict body for display, got %q", body)
	}
}

func TestGetDeployment_ParsesState(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"trained_model_stats":[{"deployment_stats":{"state":"started","allocation_status":{"state":"fully_allocated"}}}]}`)
	})

	state, err := client.GetDeployment(context.Background(), ".elser_model_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.State != DeploymentStateStarted {
		t.Errorf("expected started, got %q", state.State)
	}
}

func TestGetDeployment_NoDeployment(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"trained_model_stats":[]}`)
	})

	state, err := client.GetDeployment(context.Background(), ".elser_model_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.State != "" {
		t.Errorf("expected an empty state for a model with no deployment, got %q", state.State)
	}
}

func TestHasPipeline_NotFoundIsFalseNotError(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{}`)
	})

	exists, err := client.HasPipeline(context.Background(), "elser_seamark_pipeline")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if exists {
		t.Error("expected exists=false")
	}
}

func TestPutPipeline_SendsDocument(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"model_id":".elser_model_2"`) {
			t.Errorf("pipeline document missing the model id: %s", raw)
		}
		io.WriteString(w, `{"acknowledged":true}`)
	})

	if _, err := client.PutPipeline(context.Background(), "p", ExpansionPipeline(".elser_model_2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteIndex_NotFoundReturnsErrorAndBody(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception"}}`)
	})

	body, err := client.DeleteIndex(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for 404; the doctor decides to ignore it")
	}
	if !strings.Contains(body, "index_not_found_exception") {
		t.Errorf("expected the body for display, got %q", body)
	}
}

func TestCountDocs_ParsesCount(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"count":1234,"_shards":{"total":1}}`)
	})

	n, raw, err := client.CountDocs(context.Background(), "seamark_elser_index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1234 {
		t.Errorf("expected 1234, got %d", n)
	}
	if !strings.Contains(raw, `"_shards"`) {
		t.Error("expected the raw body alongside the parsed count")
	}
}

func TestSearchExpansion_QueryShapeAndHitMapping(t *testing.T) {
	client := newTestCluster(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var q struct {
			Size  int `json:"size"`
			Query struct {
				TextExpansion map[string]struct {
					ModelID   string `json:"model_id"`
					ModelText string `json:"model_text"`
				} `json:"text_expansion"`
			} `json:"query"`
		}
		if err := json.Unmarshal(raw, &q); err != nil {
			t.Fatalf("unparseable query: %v", err)
		}
		field, ok := q.Query.TextExpansion["ml.tokens"]
		if !ok {
			t.Fatalf("query must target the configured field, got %s", raw)
		}
		if field.ModelText != "disk full" || q.Size != 3 {
			t.Errorf("unexpected query: %+v size=%d", field, q.Size)
		}

		io.WriteString(w, `{"hits":{"hits":[
			{"_score":11.5,"_source":{"id":"case_1","title":"Disk usage alert","body":"The disk filled up.","updated_at":"2026-01-02T00:00:00Z"}},
			{"_score":7.25,"_source":{"id":"case_2","title":"Cleanup runbook","content":"Rotate the logs."}}
		]}}`)
	})

	hits, err := client.SearchExpansion(context.Background(), "idx", "ml.tokens", ".elser_model_2", "disk full", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score != 11.5 || hits[0].ID != "case_1" {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
	// content backfills an empty body field.
	if hits[1].Body != "Rotate the logs." {
		t.Errorf("expected content fallback, got %q", hits[1].Body)
	}
}
