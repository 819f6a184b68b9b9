// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main contains ollama_client.go which turns retrieved search hits
into a grounded natural-language answer via a local Ollama server.

# Problem Statement

`seamark search --answer` retrieves the top expansion hits and then needs
a model to synthesize an answer from them. The synthesis must be strictly
grounded: the model may only use the retrieved documents, and must say so
when they do not contain the answer, because the documents are the
operational source of truth and a hallucinated answer is worse than none.

# Solution

OllamaAnswerer is a thin client over two Ollama endpoints:

  - POST /api/chat (non-streaming): one system prompt pinning the model to
    the provided CONTEXT block, one user message carrying the context and
    the question
  - GET /api/tags: model listing, used to warn early when the configured
    answer model has not been pulled yet

Answer failures are never fatal to the search flow; the hits were already
printed, so the caller downgrades the error to a remediation hint.

# Configuration

  - OLLAMA_HOST: server URL (default http://localhost:11434)
  - OLLAMA_MODEL: chat model name (default llama3.1:8b)

# Related Files

  - cmd_search.go: integration point (runSearch)
  - cluster_client.go: the retrieval half of the search flow
*/
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// AnswerErrorType categorizes answer synthesis failures.
type AnswerErrorType int

const (
	// AnswerErrorConnectionFailed indicates the Ollama server is not reachable.
	AnswerErrorConnectionFailed AnswerErrorType = iota

	// AnswerErrorModelMissing indicates the configured model is not pulled.
	AnswerErrorModelMissing

	// AnswerErrorBadStatus indicates a non-200 response from Ollama.
	AnswerErrorBadStatus

	// AnswerErrorInvalidResponse indicates Ollama returned unexpected data.
	AnswerErrorInvalidResponse
)

// String returns the error type as a string for logging.
func (t AnswerErrorType) String() string {
	switch t {
	case AnswerErrorConnectionFailed:
		return "CONNECTION_FAILED"
	case AnswerErrorModelMissing:
		return "MODEL_MISSING"
	case AnswerErrorBadStatus:
		return "BAD_STATUS"
	case AnswerErrorInvalidResponse:
		return "INVALID_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// AnswerError provides structured error information for answer synthesis.
type AnswerError struct {
	// Type categorizes the error for programmatic handling.
	Type AnswerErrorType

	// Model is the chat model involved, if any.
	Model string

	// Message is a human-readable error description.
	Message string

	// Detail provides technical information for debugging.
	Detail string

	// Remediation suggests how to fix the issue.
	Remediation string
}

// Error implements the error interface.
func (e *AnswerError) Error() string {
	return e.Message
}

// FullError returns a detailed error message including remediation.
func (e *AnswerError) FullError() string {
	var buf bytes.Buffer
	buf.WriteString(e.Message)
	if e.Model != "" {
		buf.WriteString(fmt.Sprintf(" (model: %s)", e.Model))
	}
	if e.Detail != "" {
		buf.WriteString("\n\nDetails: ")
		buf.WriteString(e.Detail)
	}
	if e.Remediation != "" {
		buf.WriteString("\n\nTo fix:\n")
		buf.WriteString(e.Remediation)
	}
	return buf.String()
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// groundedSystemPrompt pins the model to the retrieved documents. The
// wording matters: "say so" is what keeps an empty context from turning
// into an invented answer.
const groundedSystemPrompt = "You are a precise assistant. Use ONLY the provided CONTEXT to answer. " +
	"If the context does not contain the answer, say so briefly."

// Answerer defines the contract for grounded answer synthesis.
//
// Implementations must be safe for concurrent use.
type Answerer interface {
	// Answer synthesizes an answer to question using only contextText.
	Answer(ctx context.Context, question, contextText string) (string, error)

	// HasModel checks whether the configured chat model is pulled.
	HasModel(ctx context.Context) (bool, error)
}

// -----------------------------------------------------------------------------
// Struct Definition
// -----------------------------------------------------------------------------

// OllamaAnswerer implements Answerer against a local Ollama server.
type OllamaAnswerer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Compile-time interface check.
var _ Answerer = (*OllamaAnswerer)(nil)

// NewOllamaAnswerer creates an answer client.
//
// # Inputs
//
//   - baseURL: Ollama server URL (e.g., "http://localhost:11434")
//   - model: chat model name (e.g., "llama3.1:8b")
//
// # Assumptions
//
//   - The model has been pulled; HasModel can verify before answering
func NewOllamaAnswerer(baseURL, model string) *OllamaAnswerer {
	return &OllamaAnswerer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			// Local generation on CPU can be slow; give it room.
			Timeout: 5 * time.Minute,
		},
	}
}

// -----------------------------------------------------------------------------
// Chat
// -----------------------------------------------------------------------------

// ollamaChatMessage is one turn of a /api/chat conversation.
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the request body for /api/chat.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// ollamaChatResponse is the non-streaming response from /api/chat.
type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Error   string            `json:"error,omitempty"`
}

// Answer synthesizes a grounded answer from the retrieved context.
//
// # Description
//
// Sends one non-streaming chat completion: a system prompt restricting
// the model to the context, then a user message with the CONTEXT block
// and the question. Returns the model's reply text with surrounding
// whitespace trimmed.
//
// # Inputs
//
//   - ctx: context for cancellation and timeout
//   - question: the user's question
//   - contextText: concatenated retrieved documents
//
// # Outputs
//
//   - string: the answer text
//   - error: an *AnswerError describing what went wrong
func (c *OllamaAnswerer) Answer(ctx context.Context, question, contextText string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: groundedSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s", contextText, question)},
		},
		Stream: false,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &AnswerError{
			Type:    AnswerErrorInvalidResponse,
			Model:   c.model,
			Message: "Failed to encode chat request",
			Detail:  err.Error(),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBytes))
	if err != nil {
		return "", &AnswerError{
			Type:        AnswerErrorConnectionFailed,
			Model:       c.model,
			Message:     "Failed to create request",
			Detail:      err.Error(),
			Remediation: "Check that Ollama is running: ollama serve",
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AnswerError{
			Type:        AnswerErrorConnectionFailed,
			Model:       c.model,
			Message:     "Cannot connect to Ollama",
			Detail:      err.Error(),
			Remediation: fmt.Sprintf("Ensure Ollama is running at %s", c.baseURL),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return "", &AnswerError{
			Type:        AnswerErrorModelMissing,
			Model:       c.model,
			Message:     fmt.Sprintf("Model '%s' not available", c.model),
			Detail:      truncate(string(body), 400),
			Remediation: fmt.Sprintf("Pull the model: ollama pull %s", c.model),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AnswerError{
			Type:        AnswerErrorBadStatus,
			Model:       c.model,
			Message:     fmt.Sprintf("Ollama returned status %d", resp.StatusCode),
			Detail:      truncate(string(body), 400),
			Remediation: "Check Ollama logs for errors",
		}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &AnswerError{
			Type:    AnswerErrorInvalidResponse,
			Model:   c.model,
			Message: "Failed to parse chat response",
			Detail:  err.Error(),
		}
	}
	if chatResp.Error != "" {
		return "", &AnswerError{
			Type:        AnswerErrorBadStatus,
			Model:       c.model,
			Message:     "Ollama reported an error",
			Detail:      chatResp.Error,
			Remediation: "Check Ollama logs for errors",
		}
	}

	slog.Debug("Chat completion finished", "model", c.model, "answerLen", len(chatResp.Message.Content))
	return strings.TrimSpace(chatResp.Message.Content), nil
}

// -----------------------------------------------------------------------------
// Model Presence
// -----------------------------------------------------------------------------

// ollamaTagsResponse is the response from /api/tags.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HasModel checks whether the configured chat model is pulled, matching
// names with or without the :latest tag.
func (c *OllamaAnswerer) HasModel(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false, &AnswerError{
			Type:    AnswerErrorConnectionFailed,
			Message: "Failed to create request",
			Detail:  err.Error(),
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &AnswerError{
			Type:        AnswerErrorConnectionFailed,
			Message:     "Cannot connect to Ollama",
			Detail:      err.Error(),
			Remediation: fmt.Sprintf("Ensure Ollama is running at %s", c.baseURL),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, &AnswerError{
			Type:    AnswerErrorBadStatus,
			Message: fmt.Sprintf("Ollama returned status %d", resp.StatusCode),
			Detail:  truncate(string(body), 400),
		}
	}

	var tagsResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return false, &AnswerError{
			Type:    AnswerErrorInvalidResponse,
			Message: "Failed to parse model list",
			Detail:  err.Error(),
		}
	}

	want := normalizeModelName(c.model)
	for _, m := range tagsResp.Models {
		if normalizeModelName(m.Name) == want {
			return true, nil
		}
	}
	return false, nil
}

// normalizeModelName removes the :latest tag if present for comparison.
func normalizeModelName(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ":latest")
}
